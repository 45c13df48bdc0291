package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". Nil errors produce an empty Attr, which
// slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the emitting component, e.g. "realtime" or "notifystore".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records a stream event or command name.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// NotificationID records a notification identifier.
func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

// Severity records a notification severity.
func Severity(s string) slog.Attr {
	return slog.String("severity", s)
}

// ToastID records a toast identifier.
func ToastID(id string) slog.Attr {
	return slog.String("toast_id", id)
}

// ConnectionID records the identifier of one stream connection.
func ConnectionID(id string) slog.Attr {
	return slog.String("connection_id", id)
}

// Endpoint records the stream server address.
func Endpoint(url string) slog.Attr {
	return slog.String("endpoint", url)
}

// Attempt records a reconnect attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Count records a collection size.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// UserID records the session subject.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Duration records a duration under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
