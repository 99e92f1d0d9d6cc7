package drive

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Typed Drive errors enabling structured classification without string parsing upstream.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op  string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %v", e.Op, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op  string
	Err error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("%s rate limited: %v", e.Op, e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

type QuotaError struct {
	Op  string
	Err error
}

func (e *QuotaError) Error() string { return fmt.Sprintf("%s quota exceeded: %v", e.Op, e.Err) }
func (e *QuotaError) Unwrap() error { return e.Err }

// classifyAPIError wraps googleapi failures into typed variants when possible.
func classifyAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch apiErr.Code {
	case http.StatusUnauthorized:
		return &AuthError{Op: op, Err: err}
	case http.StatusNotFound:
		return &NotFoundError{Op: op, Err: err}
	case http.StatusTooManyRequests:
		return &RateLimitError{Op: op, Err: err}
	case http.StatusForbidden:
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded":
				return &RateLimitError{Op: op, Err: err}
			case "quotaExceeded", "storageQuotaExceeded", "teamDriveFileLimitExceeded":
				return &QuotaError{Op: op, Err: err}
			}
		}
		return &AuthError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isPermanent reports whether a Drive operation should not be retried.
func isPermanent(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.As(err, new(*AuthError)),
		errors.As(err, new(*NotFoundError)),
		errors.As(err, new(*QuotaError)):
		return true
	case errors.As(err, new(*RateLimitError)):
		return false
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return true // local content errors never heal by retrying
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 400 && apiErr.Code < 500
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}
