// Package crypt provides column-level encryption for the data-access layer.
//
// Encrypted columns are chosen per call through a ColumnSet. The Mapper rewrites
// column references so that values are encrypted on write and decrypted on read
// inside the database, using the dialect's AES functions. The key travels as a
// bound parameter wrapped in a Secret, which always formats as [REDACTED].
package crypt
