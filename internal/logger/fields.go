package logger

import (
	"time"

	"go.uber.org/zap"
)

// String creates a field with a string value.
// Example: logger.Info("reel claimed", String("reel_id", id))
func String(key, val string) Field {
	return zap.String(key, val)
}

// Int creates a field with an int value.
// Example: logger.Info("lines wrapped", Int("count", 3))
func Int(key string, val int) Field {
	return zap.Int(key, val)
}

// Int64 creates a field with an int64 value.
func Int64(key string, val int64) Field {
	return zap.Int64(key, val)
}

// Float64 creates a field with a float64 value.
// Example: logger.Info("video duration", Float64("seconds", 7.0))
func Float64(key string, val float64) Field {
	return zap.Float64(key, val)
}

// Bool creates a field with a boolean value.
func Bool(key string, val bool) Field {
	return zap.Bool(key, val)
}

// Duration creates a field with a time.Duration value.
// The duration is formatted as a string (e.g., "1s", "100ms").
func Duration(key string, val time.Duration) Field {
	return zap.Duration(key, val)
}

// Time creates a field with a time.Time value.
func Time(key string, val time.Time) Field {
	return zap.Time(key, val)
}

// Error creates a field for an error value.
// The error is logged with the key "error" and includes the error message.
// Example: logger.Error("publish failed", Error(err))
func Error(err error) Field {
	return zap.Error(err)
}

// NamedError creates a field for an error value with a custom key.
// Use this when you want to log multiple errors or use a custom field name.
func NamedError(key string, err error) Field {
	return zap.NamedError(key, err)
}

// Any creates a field with an arbitrary value.
// The value is serialized using reflection, which may be slower than typed
// fields. Prefer typed field constructors when possible.
func Any(key string, val any) Field {
	return zap.Any(key, val)
}

// Strings creates a field with a slice of strings.
func Strings(key string, val []string) Field {
	return zap.Strings(key, val)
}
