package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type redactedArg struct{}

func (redactedArg) String() string { return "[REDACTED]" }

func TestStructuredLogger(t *testing.T) {
	t.Run("TextFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetLevel(LogLevelInfo)
		l.SetOutput(buf)
		l.SetFormat(LogFormatText)
		l.Info("hello %s", "world")

		output := buf.String()
		if !strings.Contains(output, "INFO") || !strings.Contains(output, "hello world") {
			t.Errorf("Unexpected text output: %s", output)
		}
		if !strings.HasPrefix(output, "[DATAGATE]") {
			t.Errorf("Missing prefix: %s", output)
		}
	})

	t.Run("JSONFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.Info("hello %s", "world")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["level"] != "INFO" || data["msg"] != "hello world" {
			t.Errorf("Unexpected JSON output: %v", data)
		}
		if _, ok := data["time"]; !ok {
			t.Errorf("Missing time field in JSON output")
		}
	})

	t.Run("WithFields", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l2 := l.WithFields(map[string]any{"request_id": "123"})
		l2.Info("processed")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["request_id"] != "123" || data["msg"] != "processed" {
			t.Errorf("Unexpected JSON output with fields: %v", data)
		}
	})

	t.Run("SQLJSON", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.SQL("SELECT * FROM coupons", time.Millisecond*10, "GAS15", 1)

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["level"] != "SQL" || data["sql"] != "SELECT * FROM coupons" {
			t.Errorf("Unexpected SQL JSON output: %v", data)
		}
		if data["duration"] == "" {
			t.Errorf("Missing duration in SQL JSON output")
		}
	})

	t.Run("SQLTextUsesStringer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SQL("SELECT aes_decrypt(`code`, ?) AS `code` FROM `coupons`", time.Millisecond, redactedArg{})
		if !strings.Contains(buf.String(), "[REDACTED]") {
			t.Errorf("Expected redacted arg in output: %s", buf.String())
		}
	})

	t.Run("Levels", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetLevel(LogLevelError)
		l.Info("quiet")
		l.Warn("quiet")
		l.SQL("SELECT 1", time.Millisecond)
		if buf.Len() > 0 {
			t.Errorf("Expected no output below error level, got: %s", buf.String())
		}
		l.Error("loud")
		if !strings.Contains(buf.String(), "ERROR") {
			t.Errorf("Expected error output, got: %s", buf.String())
		}
	})

	t.Run("NilOutput", func(t *testing.T) {
		l := NewStdLogger()
		l.SetOutput(nil)
		l.Error("dropped")
	})
}

func TestFormatArgs(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := FormatArgs([]any{"it's", int64(7), nil, []byte{1, 2, 3}, redactedArg{}, at, true})
	want := `["it's", 7, NULL, <3 bytes>, [REDACTED], 2024-05-01T12:00:00Z, true]`
	if got != want {
		t.Errorf("FormatArgs = %s\nwant %s", got, want)
	}
	if FormatArgs(nil) != "[]" {
		t.Errorf("FormatArgs(nil) = %s", FormatArgs(nil))
	}

	t.Run("TextFieldsSorted", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.WithFields(map[string]any{"table": "coupons", "kind": "SqlError"}).Error("failed")
		if !strings.HasSuffix(buf.String(), "failed kind=SqlError table=coupons\n") {
			t.Errorf("Unexpected text fields: %q", buf.String())
		}
	})

	t.Run("SQLJSONArgs", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.SQL("UPDATE t SET c = ?", time.Millisecond, int64(5), []byte("cipher"), redactedArg{})

		var data struct {
			Args []any `json:"args"`
		}
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatal(err)
		}
		want := []any{float64(5), "<6 bytes>", "[REDACTED]"}
		if len(data.Args) != len(want) {
			t.Fatalf("args = %v", data.Args)
		}
		for i := range want {
			if data.Args[i] != want[i] {
				t.Errorf("args[%d] = %v, want %v", i, data.Args[i], want[i])
			}
		}
	})
}

func TestParse(t *testing.T) {
	if ParseLevel("WARN") != LogLevelWarn || ParseLevel("silent") != LogLevelSilent || ParseLevel("bogus") != LogLevelInfo {
		t.Error("ParseLevel mismatch")
	}
	if ParseFormat("json") != LogFormatJSON || ParseFormat("") != LogFormatText {
		t.Error("ParseFormat mismatch")
	}
}

func TestZapLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewZapLogger(nil)
	l.SetOutput(buf)
	l.WithFields(map[string]any{"query_id": "q-1"}).SQL("SELECT 1", time.Millisecond, redactedArg{})

	var data map[string]any
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("Failed to unmarshal zap output %q: %v", buf.String(), err)
	}
	if data["sql"] != "SELECT 1" || data["query_id"] != "q-1" || data["args"] != "[[REDACTED]]" {
		t.Errorf("Unexpected zap output: %v", data)
	}

	buf.Reset()
	l.SetLevel(LogLevelError)
	l.Info("hidden")
	if buf.Len() > 0 {
		t.Errorf("Expected info to be filtered, got %s", buf.String())
	}

	NewZapLogger(zap.NewNop()).Error("into the void")
}
