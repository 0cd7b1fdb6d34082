package transport

import (
	"errors"
	"fmt"
	"time"
)

// ThrottleError: мессенджер попросил подождать (HTTP 429 с retry_after).
type ThrottleError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled for %s: %v", e.RetryAfter, e.Err)
}

func (e *ThrottleError) Unwrap() error { return e.Err }

// PermanentError: повтор не поможет: бот заблокирован, чат удален, запрос кривой.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
