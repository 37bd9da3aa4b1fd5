//
//
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Outcome values.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Timestamp     time.Time              `json:"ts"`
	CorrelationID string                 `json:"correlationId"`
	User          string                 `json:"user"`
	Interface     string                 `json:"interface,omitempty"`
	Action        string                 `json:"action"`
	Params        map[string]interface{} `json:"params"`
	Outcome       string                 `json:"outcome"`
	Code          string                 `json:"code"`
	LatencyMs     int64                  `json:"latencyMs"`
}

// Rotation bounds the on-disk audit file.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Logger writes audit entries as JSON lines.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      io.Writer
	rotator  *lumberjack.Logger
	clock    clock.Clock
	logger   *zap.Logger
}

// NewLogger creates an audit logger writing logDir/audit.jsonl with rotation.
func NewLogger(logDir string, rot Rotation, logger *zap.Logger) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	filePath := filepath.Join(logDir, "audit.jsonl")

	rotator := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    rot.MaxSizeMB,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAgeDays,
		Compress:   rot.Compress,
	}

	l := newLogger(rotator, logger)
	l.filePath = filePath
	l.rotator = rotator
	return l, nil
}

// NewWriterLogger writes entries to w without rotation.
func NewWriterLogger(w io.Writer, logger *zap.Logger) *Logger {
	return newLogger(w, logger)
}

func newLogger(w io.Writer, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{out: w, clock: clock.New(), logger: logger.Named("audit")}
}

// SetClock replaces the timestamp source.
func (l *Logger) SetClock(clk clock.Clock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clk
}

// LogAction logs an audit record for an action without parameters.
func (l *Logger) LogAction(ctx context.Context, action, iface, code string, latency time.Duration) {
	l.LogControlAction(ctx, action, iface, ParamsFromContext(ctx), code, latency)
}

// LogControlAction logs an action with explicit parameters. code is
// OutcomeSuccess or a normalized error code.
func (l *Logger) LogControlAction(ctx context.Context, action, iface string, params map[string]interface{}, code string, latency time.Duration) {
	outcome := OutcomeSuccess
	if code != OutcomeSuccess {
		outcome = OutcomeFailure
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	l.mu.Lock()
	now := l.clock.Now().UTC()
	l.mu.Unlock()

	l.writeEntry(AuditEntry{
		Timestamp:     now,
		CorrelationID: CorrelationIDFromContext(ctx),
		User:          UserFromContext(ctx),
		Interface:     iface,
		Action:        action,
		Params:        params,
		Outcome:       outcome,
		Code:          code,
		LatencyMs:     latency.Milliseconds(),
	})
}

// writeEntry writes an audit entry to the sink.
func (l *Logger) writeEntry(entry AuditEntry) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("failed to marshal audit entry", zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return
	}
	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		l.logger.Error("failed to write audit entry", zap.Error(err))
	}
}

// Close closes the file sink. Later entries are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.out = nil
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// GetFilePath returns the path to the audit log file, empty for writer sinks.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate closes the current file, renames it with a timestamp and opens a
// fresh one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rotator == nil {
		return fmt.Errorf("audit sink does not rotate")
	}
	return l.rotator.Rotate()
}

type ctxKey int

const (
	userKey ctxKey = iota
	paramsKey
	correlationKey
)

// WithUser records the authenticated subject for audit entries.
func WithUser(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, userKey, subject)
}

// UserFromContext returns the subject stored by WithUser, or "unknown".
func UserFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userKey).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// WithParams attaches request parameters for LogAction.
func WithParams(ctx context.Context, params map[string]interface{}) context.Context {
	return context.WithValue(ctx, paramsKey, params)
}

// ParamsFromContext returns the parameters stored by WithParams, or an empty map.
func ParamsFromContext(ctx context.Context) map[string]interface{} {
	if p, ok := ctx.Value(paramsKey).(map[string]interface{}); ok {
		return p
	}
	return map[string]interface{}{}
}

// WithCorrelationID tags ctx with id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFromContext returns the stored ID or a fresh random one.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
