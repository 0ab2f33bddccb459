package core

import (
	"context"
	"fmt"

	"github.com/shrek82/datagate/crypt"
	"github.com/shrek82/datagate/model"
)

// InsertModel inserts a tagged struct. The table, columns and encrypted
// columns come from its `dal` tags; auto-increment fields are left to the database.
func (db *DB) InsertModel(ctx context.Context, value any) *Result {
	m, err := model.GetModel(value)
	if err != nil {
		return db.fail("", fmt.Errorf("%w: %v", ErrInvalidQuery, err))
	}
	rec, err := model.ToRecord(value)
	if err != nil {
		return db.fail(m.TableName, fmt.Errorf("%w: %v", ErrInvalidQuery, err))
	}
	return db.Insert(ctx, m.TableName, rec, m.EncryptedColumns()...)
}

// SelectModel selects the tagged columns of dest's table, decrypting the
// encrypted ones. Scan the rows into structs with Result.Scan.
func (db *DB) SelectModel(ctx context.Context, dest any, where *model.Record) *Result {
	m, err := model.GetModel(dest)
	if err != nil {
		return db.fail("", fmt.Errorf("%w: %v", ErrInvalidQuery, err))
	}
	return db.Select(ctx, m.TableName, m.Columns(), where, &SelectOptions{
		Encrypted: crypt.Columns(m.EncryptedColumns()...),
	})
}

// Scan copies row i of the result into the struct pointed to by dest.
func (r *Result) Scan(i int, dest any) error {
	if i < 0 || i >= len(r.Rows) {
		return fmt.Errorf("row %d out of range (%d rows)", i, len(r.Rows))
	}
	return model.Scan(r.Rows[i], dest)
}
