package crypt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

type backtick struct{}

func (backtick) Quote(name string) string              { return "`" + name + "`" }
func (backtick) EncryptExpr() string                   { return "AES_ENCRYPT(?, ?)" }
func (backtick) DecryptExpr(quotedColumn string) string { return "AES_DECRYPT(" + quotedColumn + ", ?)" }

func TestEncryptDecrypt(t *testing.T) {
	key := []byte("a key longer than sixteen bytes")

	for _, plain := range []string{"", "GAS15", "exactly16bytes!!", strings.Repeat("x", 100)} {
		c := Encrypt(key, []byte(plain))
		if len(c)%16 != 0 || len(c) <= len(plain) {
			t.Errorf("Unexpected ciphertext length %d for %q", len(c), plain)
		}
		if plain != "" && bytes.Contains(c, []byte(plain)) {
			t.Errorf("Ciphertext contains plaintext %q", plain)
		}
		got, err := Decrypt(key, c)
		if err != nil {
			t.Fatalf("Decrypt(%q) failed: %v", plain, err)
		}
		if string(got) != plain {
			t.Errorf("Expected %q, got %q", plain, got)
		}
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	key := []byte("k")
	if _, err := Decrypt(key, []byte("not encrypted")); err != ErrCiphertext {
		t.Errorf("Expected ErrCiphertext for short input, got %v", err)
	}
	c := Encrypt([]byte("other key"), []byte("GAS15"))
	if plain, err := Decrypt(key, c); err == nil && string(plain) == "GAS15" {
		t.Error("Decrypt with the wrong key returned the plaintext")
	}
}

func TestSQLFunctions(t *testing.T) {
	c, err := SQLEncrypt("GAS15", "secret")
	if err != nil {
		t.Fatal(err)
	}
	p, err := SQLDecrypt(c, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if string(p.([]byte)) != "GAS15" {
		t.Errorf("Expected GAS15, got %v", p)
	}

	n, _ := SQLEncrypt(int64(42), []byte("secret"))
	p, _ = SQLDecrypt(n, "secret")
	if string(p.([]byte)) != "42" {
		t.Errorf("Expected 42, got %v", p)
	}

	if v, _ := SQLEncrypt(nil, "secret"); v != nil {
		t.Errorf("Expected NULL for NULL input, got %v", v)
	}
	if v, _ := SQLDecrypt("plain text", "secret"); v != nil {
		t.Errorf("Expected NULL for undecryptable input, got %v", v)
	}
}

func TestSecretNeverPrints(t *testing.T) {
	s := NewSecret("hunter2-super-secret")
	outputs := []string{
		fmt.Sprint(s),
		fmt.Sprintf("%v %+v %#v %s %q %x", s, s, s, s, s, s),
		fmt.Sprint([]any{"a", s}),
	}
	b, _ := json.Marshal(map[string]any{"args": []any{s}})
	outputs = append(outputs, string(b))

	for _, out := range outputs {
		if strings.Contains(out, "hunter2") {
			t.Errorf("Secret leaked in %q", out)
		}
	}

	v, err := s.Value()
	if err != nil || v != "hunter2-super-secret" {
		t.Errorf("Value() should expose the key to the driver, got %v, %v", v, err)
	}
	if !NewSecret("").IsZero() {
		t.Error("Expected empty secret to be zero")
	}
}

func TestPlaintextNeverPrints(t *testing.T) {
	p := NewPlaintext("4111-1111-1111-1111")
	b, _ := json.Marshal([]any{p})
	outputs := []string{
		fmt.Sprint(p),
		fmt.Sprintf("%v %+v %#v %s %q", p, p, p, p, p),
		fmt.Sprint([]any{"GAS15", p}),
		string(b),
	}
	for _, out := range outputs {
		if strings.Contains(out, "4111") {
			t.Errorf("Plaintext leaked in %q", out)
		}
	}

	v, err := p.Value()
	if err != nil || v != "4111-1111-1111-1111" {
		t.Errorf("Value() should bind the wrapped value, got %v, %v", v, err)
	}
	if NewPlaintext(p) != p {
		t.Error("Expected rewrapping to be a no-op")
	}
	if v, _ := NewPlaintext(NewSecret("k")).Value(); v != "k" {
		t.Errorf("Expected nested valuer to be resolved, got %v", v)
	}
}

func TestMapper(t *testing.T) {
	m := NewMapper(backtick{}, NewSecret("k"))
	set := Columns("code")

	t.Run("ReadPlain", func(t *testing.T) {
		expr, args, err := m.ForRead("value", set)
		if err != nil || expr != "`value`" || len(args) != 0 {
			t.Errorf("Unexpected read mapping: %q %v %v", expr, args, err)
		}
	})

	t.Run("ReadEncrypted", func(t *testing.T) {
		expr, args, err := m.ForRead("code", set)
		if err != nil {
			t.Fatal(err)
		}
		if expr != "AES_DECRYPT(`code`, ?) AS `code`" {
			t.Errorf("Unexpected expression: %s", expr)
		}
		if len(args) != 1 {
			t.Fatalf("Expected one arg, got %v", args)
		}
		if _, ok := args[0].(Secret); !ok {
			t.Errorf("Expected key arg, got %v", args)
		}
	})

	t.Run("WriteEncrypted", func(t *testing.T) {
		expr, args, err := m.ForWrite("code", "GAS15", set)
		if err != nil {
			t.Fatal(err)
		}
		if expr != "AES_ENCRYPT(?, ?)" || len(args) != 2 {
			t.Fatalf("Unexpected write mapping: %q %v", expr, args)
		}
		p, ok := args[0].(Plaintext)
		if !ok || p.Unwrap() != "GAS15" {
			t.Errorf("Expected wrapped value, got %#v", args[0])
		}
	})

	t.Run("NoKey", func(t *testing.T) {
		nm := NewMapper(backtick{}, Secret{})
		if _, _, err := nm.ForWrite("code", "x", set); err != ErrNoKey {
			t.Errorf("Expected ErrNoKey, got %v", err)
		}
		if _, _, err := nm.ForRead("value", set); err != nil {
			t.Errorf("Plain column should not need a key: %v", err)
		}
	})
}
