package middleware

import (
	"context"
	"time"

	"github.com/shrek82/jpool/logger"
)

// SlowLogMiddleware logs statements that take longer than Threshold.
type SlowLogMiddleware struct {
	Threshold time.Duration
	log       logger.Logger
}

// NewSlowLog logs through l at warn level. A nil l discards.
func NewSlowLog(threshold time.Duration, l logger.Logger) *SlowLogMiddleware {
	if l == nil {
		l = logger.Discard()
	}
	return &SlowLogMiddleware{
		Threshold: threshold,
		log:       l.WithFields(map[string]any{"component": "slowlog"}),
	}
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Process(ctx context.Context, st *Statement, next StatementFunc) error {
	start := time.Now()
	err := next(ctx, st)
	duration := time.Since(start)

	if duration > m.Threshold {
		l := m.log
		if len(st.Fields) > 0 {
			l = l.WithFields(st.Fields)
		}
		l.Warn("slow statement: duration=%v | sql=%s | args=%v | err=%v", duration, st.SQL, st.Params, err)
	}
	return err
}
