package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shrek82/datagate"
	"github.com/shrek82/datagate/config"
	"github.com/shrek82/datagate/pool"
)

func TestParsePairs(t *testing.T) {
	rec, err := parsePairs("code=GAS15, value=0,ratio=1.5,note=null,id='007'")
	if err != nil {
		t.Fatalf("parsePairs: %v", err)
	}
	if got := strings.Join(rec.Keys(), ","); got != "code,value,ratio,note,id" {
		t.Errorf("keys = %s", got)
	}

	want := map[string]any{"code": "GAS15", "value": int64(0), "ratio": 1.5, "note": nil, "id": "007"}
	for k, w := range want {
		if v, _ := rec.Get(k); v != w {
			t.Errorf("%s = %#v, want %#v", k, v, w)
		}
	}

	if _, err := parsePairs("novalue"); err == nil {
		t.Error("accepted a pair without '='")
	}
}

func TestParseRequest(t *testing.T) {
	if _, err := parseRequest("delete", "t", "", "", "", "", ""); err == nil {
		t.Error("accepted unknown op")
	}
	if _, err := parseRequest("insert", "t", "", "", "", "", ""); err == nil {
		t.Error("accepted insert without -set")
	}

	r, err := parseRequest("SELECT", "coupons", "code, value", "code=GAS15", "", "card", "")
	if err != nil {
		t.Fatalf("parseRequest: %v", err)
	}
	if r.op != "select" || len(r.columns) != 2 || r.where.Len() != 1 || len(r.encrypted) != 1 {
		t.Errorf("request = %+v", r)
	}
}

func TestRenderDryRun(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "sqlite3"
	cfg.Database.Database = filepath.Join(t.TempDir(), "cli.db")
	cfg.Encryption.Key = "cli-key"
	cfg.Logging.Level = "silent"

	db, err := datagate.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	r, err := parseRequest("update", "coupons", "", "code=GAS15", "value=5,card=4111", "card", "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.render(db.Builder())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "UPDATE `coupons` SET `value` = 5, `card` = aes_encrypt(4111, '[REDACTED]') WHERE `code` = 'GAS15'"
	if got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestRunClosesDatabase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "datagate.yaml")
	yml := fmt.Sprintf("database:\n  driver: sqlite3\n  database: %q\nencryption:\n  key: cli-key\nlogging:\n  level: silent\n",
		filepath.Join(dir, "cli.db"))
	if err := os.WriteFile(cfgPath, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	setFlag(t, configPath, cfgPath)
	setFlag(t, op, "select")
	setFlag(t, table, "missing")

	var opened *datagate.DB
	orig := openDB
	openDB = func(cfg *config.Config) (*datagate.DB, error) {
		db, err := orig(cfg)
		opened = db
		return db, err
	}
	t.Cleanup(func() { openDB = orig })

	var out bytes.Buffer
	if code := run(&out); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), `"kind": "MissingTable"`) {
		t.Errorf("output = %s", out.String())
	}
	if opened == nil {
		t.Fatal("database was never opened")
	}
	if _, err := opened.Pool().Acquire(context.Background()); !errors.Is(err, pool.ErrPoolClosed) {
		t.Errorf("Acquire after run = %v, want ErrPoolClosed", err)
	}

	t.Run("usage without table", func(t *testing.T) {
		setFlag(t, table, "")
		var out bytes.Buffer
		if code := run(&out); code != 2 || !strings.Contains(out.String(), "usage:") {
			t.Errorf("exit code = %d, output = %q", code, out.String())
		}
	})
}

func setFlag(t *testing.T, p *string, v string) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}
