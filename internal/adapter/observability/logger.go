package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel maps a configuration string onto a LogLevel.
// Unknown values fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat defines the output format for log lines.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// ParseLogFormat maps a configuration string onto a LogFormat.
// Empty or "auto" picks based on whether stderr is a terminal.
func ParseLogFormat(s string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return LogFormatJSON
	case "human":
		return LogFormatHuman
	default:
		return DetectFormat()
	}
}

// Logger provides structured logging for task orchestration. Field maps carry
// per-call context (task ID, provider, repository); implementations must
// tolerate nil maps.
type Logger interface {
	LogDebug(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// DefaultLogger writes structured log lines through the standard library
// logger, in either human-readable or JSON form.
type DefaultLogger struct {
	level         LogLevel
	format        LogFormat
	redactSecrets bool
}

// NewDefaultLogger creates a logger with the specified config.
func NewDefaultLogger(level LogLevel, format LogFormat, redactSecrets bool) *DefaultLogger {
	return &DefaultLogger{
		level:         level,
		format:        format,
		redactSecrets: redactSecrets,
	}
}

// SetRedaction enables or disables secret redaction.
func (l *DefaultLogger) SetRedaction(enabled bool) {
	l.redactSecrets = enabled
}

// LogDebug logs a debug message with structured fields.
func (l *DefaultLogger) LogDebug(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelDebug {
		return
	}
	l.emit("debug", message, fields)
}

// LogInfo logs an informational message with structured fields.
func (l *DefaultLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.emit("info", message, fields)
}

// LogWarning logs a warning message with structured fields.
func (l *DefaultLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelWarn {
		return
	}
	l.emit("warning", message, fields)
}

// LogError logs an error message with structured fields.
func (l *DefaultLogger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.emit("error", message, fields)
}

func (l *DefaultLogger) emit(level, message string, fields map[string]interface{}) {
	if l.format == LogFormatJSON {
		entry := make(map[string]interface{}, len(fields)+3)
		for key, value := range fields {
			entry[key] = l.redactField(key, value)
		}
		entry["level"] = level
		entry["message"] = message
		entry["timestamp"] = time.Now().Format(time.RFC3339)

		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf(`{"level":%q,"message":%q,"marshal_error":%q}`, level, message, err.Error())
			return
		}
		log.Printf("%s", data)
		return
	}

	log.Printf("[%s] %s%s", strings.ToUpper(level), message, l.formatFields(fields))
}

// formatFields renders fields as " (k=v, k=v)" with deterministic key order,
// or an empty string when there are no fields.
func (l *DefaultLogger) formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, l.redactField(key, fields[key])))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func (l *DefaultLogger) redactField(key string, value interface{}) interface{} {
	if !l.redactSecrets {
		return value
	}
	lower := strings.ToLower(key)
	if !strings.Contains(lower, "secret") && !strings.Contains(lower, "token") && !strings.Contains(lower, "password") {
		return value
	}
	s, ok := value.(string)
	if !ok {
		return "[REDACTED]"
	}
	return RedactSecret(s)
}

// RedactSecret shows only the last 4 characters of a secret with explicit
// redaction markers.
func RedactSecret(s string) string {
	if len(s) <= 4 {
		return "[REDACTED]"
	}
	return fmt.Sprintf("[REDACTED-%s]", s[len(s)-4:])
}

// NopLogger discards all log output. Used when logging is disabled and as a
// stand-in in tests.
type NopLogger struct{}

func (NopLogger) LogDebug(context.Context, string, map[string]interface{})   {}
func (NopLogger) LogInfo(context.Context, string, map[string]interface{})    {}
func (NopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
func (NopLogger) LogError(context.Context, string, map[string]interface{})   {}
