package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// ParseLevel maps a config string onto a LogLevel. Unknown strings mean info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	}
	return LogLevelInfo
}

// ParseFormat maps a config string onto a LogFormat. Unknown strings mean text.
func ParseFormat(s string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(LogFormatJSON)) {
		return LogFormatJSON
	}
	return LogFormatText
}

// Logger is the interface for logging SQL and internal messages.
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	WithFields(fields map[string]any) Logger
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	// SQL logs an executed statement. Arguments are rendered with FormatArgs.
	SQL(sql string, duration time.Duration, args ...any)
}

// FormatArgs renders statement arguments for a log line.
//
// Strings are quoted, binary values (ciphertext, blobs) are summarized by
// length, and values with a String method print through it. crypt.Secret and
// crypt.Plaintext rely on the last rule to show up as [REDACTED].
func FormatArgs(args []any) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatArg(a))
	}
	sb.WriteByte(']')
	return sb.String()
}

func formatArg(a any) string {
	switch v := a.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	case string:
		return strconv.Quote(v)
	case []byte:
		return "<" + strconv.Itoa(len(v)) + " bytes>"
	}
	return fmt.Sprint(a)
}

// jsonArgs is the JSON counterpart of FormatArgs: values keep their JSON type
// where that is safe to print.
func jsonArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil, string, bool, int, int64, float64:
			out[i] = v
		default:
			out[i] = formatArg(v)
		}
	}
	return out
}

// entry is one log line before encoding.
type entry struct {
	time   time.Time
	level  string
	msg    string
	attrs  map[string]any // per-line values, e.g. sql and args
	fields map[string]any // WithFields context
}

// stdLogger is the default implementation of Logger. Loggers derived with
// WithFields share the output lock of their parent.
type stdLogger struct {
	mu     *sync.Mutex
	level  LogLevel
	format LogFormat
	writer io.Writer
	fields map[string]any
}

// NewStdLogger creates a text logger on stdout at info level.
func NewStdLogger() Logger {
	return &stdLogger{
		mu:     &sync.Mutex{},
		level:  LogLevelInfo,
		format: LogFormatText,
		writer: os.Stdout,
		fields: make(map[string]any),
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	l := NewStdLogger()
	l.SetLevel(LogLevelSilent)
	l.SetOutput(io.Discard)
	return l
}

func (l *stdLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *stdLogger) SetFormat(format LogFormat) {
	l.format = format
}

func (l *stdLogger) SetOutput(w io.Writer) {
	l.writer = w
}

func (l *stdLogger) WithFields(fields map[string]any) Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &stdLogger{
		mu:     l.mu,
		level:  l.level,
		format: l.format,
		writer: l.writer,
		fields: merged,
	}
}

func (l *stdLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.write(entry{level: "INFO", msg: fmt.Sprintf(format, args...)})
	}
}

func (l *stdLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.write(entry{level: "WARN", msg: fmt.Sprintf(format, args...)})
	}
}

func (l *stdLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.write(entry{level: "ERROR", msg: fmt.Sprintf(format, args...)})
	}
}

func (l *stdLogger) SQL(sql string, duration time.Duration, args ...any) {
	if l.level < LogLevelInfo {
		return
	}
	e := entry{level: "SQL"}
	if l.format == LogFormatJSON {
		e.attrs = map[string]any{
			"sql":      sql,
			"duration": duration.String(),
			"args":     jsonArgs(args),
		}
	} else {
		e.msg = fmt.Sprintf("[%v] %s | args: %s", duration, sql, FormatArgs(args))
		if l.writer == os.Stdout {
			e.msg = sqlColor(sql) + e.msg + ansiReset
		}
	}
	l.write(e)
}

func (l *stdLogger) write(e entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == nil {
		return
	}
	e.time = time.Now()
	e.fields = l.fields

	if l.format == LogFormatJSON {
		_ = json.NewEncoder(l.writer).Encode(e.jsonMap())
		return
	}
	io.WriteString(l.writer, e.text())
}

func (e entry) jsonMap() map[string]any {
	data := make(map[string]any, len(e.fields)+len(e.attrs)+3)
	for k, v := range e.fields {
		data[k] = v
	}
	for k, v := range e.attrs {
		data[k] = v
	}
	data["time"] = e.time.Format(time.RFC3339)
	data["level"] = e.level
	if e.msg != "" {
		data["msg"] = e.msg
	}
	return data
}

// text renders "[DATAGATE] <time> <LEVEL>: <msg> k=v ..." with fields sorted by key.
func (e entry) text() string {
	var sb strings.Builder
	sb.WriteString("[DATAGATE] ")
	sb.WriteString(e.time.Format("2006-01-02 15:04:05"))
	sb.WriteByte(' ')
	sb.WriteString(e.level)
	sb.WriteString(": ")
	sb.WriteString(e.msg)

	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.fields[k])
	}
	sb.WriteByte('\n')
	return sb.String()
}

func sqlColor(sqlStr string) string {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT"):
		return ansiYellow
	case strings.HasPrefix(s, "INSERT"), strings.HasPrefix(s, "UPDATE"):
		return ansiGreen
	case strings.HasPrefix(s, "DELETE"):
		return ansiRed
	default:
		return ansiCyan
	}
}
