package crypt

import (
	"bytes"
	"crypto/aes"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrCiphertext is returned when a value cannot be decrypted under the key.
var ErrCiphertext = errors.New("invalid ciphertext")

// foldKey reduces key to an AES-128 key the way MySQL's AES_ENCRYPT does:
// bytes beyond the 16th are XORed back onto the start of the buffer.
func foldKey(key []byte) []byte {
	folded := make([]byte, aes.BlockSize)
	for i, b := range key {
		folded[i%aes.BlockSize] ^= b
	}
	return folded
}

// Encrypt encrypts plain with AES-128-ECB and PKCS#7 padding.
// The output is byte-for-byte what MySQL's AES_ENCRYPT(plain, key) returns.
func Encrypt(key, plain []byte) []byte {
	block, _ := aes.NewCipher(foldKey(key)) // folded key is always 16 bytes

	pad := aes.BlockSize - len(plain)%aes.BlockSize
	buf := make([]byte, len(plain)+pad)
	copy(buf, plain)
	copy(buf[len(plain):], bytes.Repeat([]byte{byte(pad)}, pad))

	for off := 0; off < len(buf); off += aes.BlockSize {
		block.Encrypt(buf[off:off+aes.BlockSize], buf[off:off+aes.BlockSize])
	}
	return buf
}

// Decrypt reverses Encrypt. It returns ErrCiphertext when the input is not a whole
// number of blocks or the padding does not check out, which is what happens when
// the value was never encrypted or was encrypted under another key.
func Decrypt(key, cipherText []byte) ([]byte, error) {
	if len(cipherText) == 0 || len(cipherText)%aes.BlockSize != 0 {
		return nil, ErrCiphertext
	}
	block, _ := aes.NewCipher(foldKey(key))

	buf := make([]byte, len(cipherText))
	for off := 0; off < len(buf); off += aes.BlockSize {
		block.Decrypt(buf[off:off+aes.BlockSize], cipherText[off:off+aes.BlockSize])
	}

	pad := int(buf[len(buf)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, ErrCiphertext
	}
	for _, b := range buf[len(buf)-pad:] {
		if int(b) != pad {
			return nil, ErrCiphertext
		}
	}
	return buf[:len(buf)-pad], nil
}

// SQLEncrypt is the aes_encrypt(value, key) SQL function registered on SQLite connections.
// NULL in gives NULL out; numbers are encrypted in their decimal text form.
func SQLEncrypt(value any, key any) (any, error) {
	if value == nil {
		return nil, nil
	}
	plain, err := toBytes(value)
	if err != nil {
		return nil, err
	}
	k, err := toBytes(key)
	if err != nil {
		return nil, err
	}
	return Encrypt(k, plain), nil
}

// SQLDecrypt is the aes_decrypt(value, key) SQL function registered on SQLite connections.
// Like MySQL it yields NULL for anything that does not decrypt cleanly.
func SQLDecrypt(value any, key any) (any, error) {
	if value == nil {
		return nil, nil
	}
	c, err := toBytes(value)
	if err != nil {
		return nil, err
	}
	k, err := toBytes(key)
	if err != nil {
		return nil, err
	}
	plain, err := Decrypt(k, c)
	if err != nil {
		return nil, nil
	}
	return plain, nil
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case int64:
		return []byte(strconv.FormatInt(x, 10)), nil
	case float64:
		return []byte(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case bool:
		if x {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case time.Time:
		return []byte(x.Format("2006-01-02 15:04:05")), nil
	}
	return nil, fmt.Errorf("crypt: unsupported value type %T", v)
}
