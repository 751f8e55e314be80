package llm

import (
	"time"

	"podharvest/internal/services"
)

// Kind distinguishes completion failure classes. Timeout, connection, and
// server kinds are transient; client kind is not retried.
type Kind int

const (
	KindTimeout Kind = iota
	KindConnection
	KindServer
	KindClient
)

// String returns a short label for logs.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindServer:
		return "server-error"
	case KindClient:
		return "client-error"
	default:
		return "unknown"
	}
}

// Error describes one failed completion attempt.
type Error struct {
	Kind       Kind
	StatusCode int
	RetryAfter time.Duration
	Message    string
	cause      error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap maps the kind onto the shared sentinel markers so generic
// classification (services.IsRetryable) works on completion errors.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindTimeout:
		return services.ErrTimeout
	case KindClient:
		return services.ErrPermanent
	default:
		return services.ErrTransient
	}
}

// Cause returns the underlying transport error, if any.
func (e *Error) Cause() error {
	return e.cause
}

// RetryAfterHint reports the server-requested retry delay, when present.
func (e *Error) RetryAfterHint() time.Duration {
	return e.RetryAfter
}
