package engine

import (
	"errors"
	"strings"

	"github.com/ncruces/go-sqlite3"
)

// ErrClosed is returned for calls after Close.
var ErrClosed = errors.New("engine: client is closed")

// Error carries the engine's message across the async boundary. The
// underlying driver error stays reachable for typed-code checks.
type Error struct {
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Message: err.Error(), cause: err}
}

// Error discrimination lives here and nowhere else. The driver exposes
// typed codes, so those are checked first; message patterns cover signals
// that only exist as text (notably the browser runtime's access-handle
// failures, which have no code at all).

var busyPatterns = []string{
	"database is locked",
	"database is busy",
	"sqlite_busy",
}

var contentionPatterns = []string{
	"access handle",
	"createsyncaccesshandle",
	"nomodificationallowederror",
}

// IsBusy reports whether err is transient lock contention worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.BUSY, sqlite3.LOCKED:
			return true
		}
	}
	return matchesAny(err, busyPatterns)
}

// IsContention reports whether err signals that another session holds the
// durable file in a way retries cannot fix. This is the trigger for the
// permanent memory fallback.
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	return matchesAny(err, contentionPatterns)
}

func matchesAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
