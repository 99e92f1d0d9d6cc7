package drive

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"google.golang.org/api/googleapi"
)

func apiError(code int, reason string) error {
	e := &googleapi.Error{Code: code}
	if reason != "" {
		e.Errors = []googleapi.ErrorItem{{Reason: reason}}
	}
	return e
}

func TestClassifyAuth(t *testing.T) {
	err := classifyAPIError("upload x", apiError(401, ""))
	if !errors.As(err, new(*AuthError)) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if !isPermanent(err) {
		t.Fatal("auth errors must be permanent")
	}
}

func TestClassifyNotFound(t *testing.T) {
	err := classifyAPIError("find folder", apiError(404, ""))
	if !errors.As(err, new(*NotFoundError)) {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
	if !isPermanent(err) {
		t.Fatal("not-found errors must be permanent")
	}
}

func TestClassifyRateLimit(t *testing.T) {
	for _, e := range []error{apiError(429, ""), apiError(403, "rateLimitExceeded"), apiError(403, "userRateLimitExceeded")} {
		err := classifyAPIError("upload", e)
		if !errors.As(err, new(*RateLimitError)) {
			t.Fatalf("expected RateLimitError for %v, got %T", e, err)
		}
		if isPermanent(err) {
			t.Fatal("rate limit errors must be retryable")
		}
	}
}

func TestClassifyQuota(t *testing.T) {
	err := classifyAPIError("upload", apiError(403, "storageQuotaExceeded"))
	if !errors.As(err, new(*QuotaError)) {
		t.Fatalf("expected QuotaError, got %T", err)
	}
	if !isPermanent(err) {
		t.Fatal("quota errors must be permanent")
	}
}

func TestClassifyForbiddenWithoutReasonIsAuth(t *testing.T) {
	err := classifyAPIError("upload", apiError(403, "somethingElse"))
	if !errors.As(err, new(*AuthError)) {
		t.Fatalf("expected AuthError for plain 403, got %T", err)
	}
}

func TestClassifyServerErrorRetryable(t *testing.T) {
	err := classifyAPIError("upload", apiError(503, ""))
	if isPermanent(err) {
		t.Fatal("5xx errors must be retryable")
	}
}

func TestClassifyNonAPIErrorWrapped(t *testing.T) {
	base := fmt.Errorf("connection reset")
	err := classifyAPIError("upload", base)
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped original error")
	}
	if isPermanent(err) {
		t.Fatal("unknown errors default to retryable")
	}
}

func TestLocalPathErrorPermanent(t *testing.T) {
	err := &fs.PathError{Op: "open", Path: "missing.txt", Err: fs.ErrNotExist}
	if !isPermanent(err) {
		t.Fatal("local path errors must be permanent")
	}
}

func TestNilClassifiesNil(t *testing.T) {
	if classifyAPIError("op", nil) != nil {
		t.Fatal("nil must classify to nil")
	}
}
