package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger implements Logger on top of a *zap.Logger.
// Format and output are owned by the zap core, so SetFormat and SetOutput
// rebuild the core with the matching encoder and sink.
type zapLogger struct {
	base   *zap.Logger
	level  zap.AtomicLevel
	format LogFormat
	writer io.Writer
	fields map[string]any
}

// NewZapLogger wraps an existing zap logger. A nil logger builds a JSON logger on stdout.
func NewZapLogger(z *zap.Logger) Logger {
	l := &zapLogger{
		level:  zap.NewAtomicLevelAt(zapcore.InfoLevel),
		format: LogFormatJSON,
		fields: make(map[string]any),
	}
	if z == nil {
		l.rebuild()
	} else {
		l.base = z
	}
	return l
}

func (l *zapLogger) rebuild() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if l.format == LogFormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	var sink zapcore.WriteSyncer = zapcore.Lock(zapcore.AddSync(os.Stdout))
	if l.writer != nil {
		sink = zapcore.AddSync(l.writer)
	}
	l.base = zap.New(zapcore.NewCore(enc, sink, l.level))
}

func (l *zapLogger) SetLevel(level LogLevel) {
	switch level {
	case LogLevelSilent:
		l.level.SetLevel(zapcore.FatalLevel + 1)
	case LogLevelError:
		l.level.SetLevel(zapcore.ErrorLevel)
	case LogLevelWarn:
		l.level.SetLevel(zapcore.WarnLevel)
	default:
		l.level.SetLevel(zapcore.InfoLevel)
	}
}

func (l *zapLogger) SetFormat(format LogFormat) {
	l.format = format
	l.rebuild()
}

func (l *zapLogger) SetOutput(w io.Writer) {
	l.writer = w
	l.rebuild()
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		merged[k] = v
		zf = append(zf, zap.Any(k, v))
	}
	return &zapLogger{
		base:   l.base.With(zf...),
		level:  l.level,
		format: l.format,
		writer: l.writer,
		fields: merged,
	}
}

func (l *zapLogger) Info(format string, args ...any) {
	l.base.Info(fmt.Sprintf(format, args...))
}

func (l *zapLogger) Warn(format string, args ...any) {
	l.base.Warn(fmt.Sprintf(format, args...))
}

func (l *zapLogger) Error(format string, args ...any) {
	l.base.Error(fmt.Sprintf(format, args...))
}

func (l *zapLogger) SQL(sql string, duration time.Duration, args ...any) {
	l.base.Info("sql",
		zap.String("sql", sql),
		zap.Duration("duration", duration),
		zap.String("args", FormatArgs(args)),
	)
}
