package middleware

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shrek82/datagate/core"
	"github.com/shrek82/datagate/logger"
)

// SlowLogMiddleware logs statements that take longer than the specified threshold.
type SlowLogMiddleware struct {
	Threshold time.Duration
	LogPath   string
	// MaxSizeMB and MaxBackups control rotation of LogPath.
	MaxSizeMB  int
	MaxBackups int

	logger *log.Logger
	closer io.Closer
}

// NewSlowLog creates a new SlowLogMiddleware.
// threshold: statements taking longer than this will be logged.
// logPath: path to a rotated log file. If empty, logs to standard output.
func NewSlowLog(threshold time.Duration, logPath string) *SlowLogMiddleware {
	return &SlowLogMiddleware{
		Threshold:  threshold,
		LogPath:    logPath,
		MaxSizeMB:  100,
		MaxBackups: 5,
	}
}

// SetOutput sets the output destination for the logger.
// This is useful for testing or custom logging.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	m.logger = log.New(w, "[SLOW SQL] ", log.LstdFlags)
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(db *core.DB) error {
	// If logger is already set (e.g. by SetOutput), don't overwrite it
	if m.logger != nil {
		return nil
	}

	if m.LogPath != "" {
		w := &lumberjack.Logger{
			Filename:   m.LogPath,
			MaxSize:    m.MaxSizeMB,
			MaxBackups: m.MaxBackups,
			Compress:   true,
		}
		m.closer = w
		m.logger = log.New(w, "[SLOW SQL] ", log.LstdFlags)
	} else {
		m.logger = log.New(os.Stdout, "[SLOW SQL] ", log.LstdFlags)
	}
	return nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

func (m *SlowLogMiddleware) Process(ctx context.Context, st *core.Statement, next core.Handler) (*core.Outcome, error) {
	start := time.Now()
	out, err := next(ctx, st)
	duration := time.Since(start)

	if duration > m.Threshold {
		var rows int64
		if out != nil {
			rows = out.RowsAffected + int64(len(out.Rows))
		}
		m.logger.Printf("duration=%v | %s %s | sql=%s | args=%s | rows=%d | err=%v",
			duration, st.Kind, st.Table, st.SQL, logger.FormatArgs(st.Args), rows, err)
	}
	return out, err
}
