package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry is one attributed audit record.
type Entry struct {
	ID        string         `json:"id,omitempty"`
	Time      time.Time      `json:"ts"`
	Event     string         `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// Sink persists audit entries beyond the log stream.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// Log writes every entry as a JSON line and forwards it to its sinks.
type Log struct {
	sinks []Sink
	now   func() time.Time
}

// New builds a Log. Without sinks it only writes log lines.
func New(sinks ...Sink) *Log {
	return &Log{sinks: sinks, now: time.Now}
}

var std = New()

// LogEvent writes an audit entry through the log-only default.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	return std.LogEvent(ctx, event, fields)
}

// LogEvent writes an audit log entry enriched with request and user context.
// Sink failures are joined into the returned error; the log line is always written.
func (l *Log) LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	e := Entry{
		Time:      l.now().UTC(),
		Event:     event,
		RequestID: RequestIDFromContext(ctx),
		Fields:    make(map[string]any, len(fields)),
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		e.UserID = userID
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		e.Fields[k] = v
	}

	line := map[string]any{
		"ts":     e.Time.Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  e.Event,
		"fields": e.Fields,
	}
	if e.RequestID != "" {
		line["request_id"] = e.RequestID
	}
	if e.UserID != "" {
		line["user_id"] = e.UserID
	}
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))

	var errs []error
	for _, s := range l.sinks {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
