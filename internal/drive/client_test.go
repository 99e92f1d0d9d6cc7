package drive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"git.home.luguber.info/inful/repobackup/internal/config"
	"git.home.luguber.info/inful/repobackup/internal/retry"
)

func retryClient(maxRetries int) *Client {
	return &Client{policy: retry.Policy{
		Mode:       config.RetryBackoffFixed,
		Initial:    time.Millisecond,
		Max:        time.Millisecond,
		MaxRetries: maxRetries,
	}}
}

func TestWithRetryTransientThenSuccess(t *testing.T) {
	c := retryClient(3)
	calls := 0
	id, err := c.withRetry(context.Background(), "list folders", func() (string, error) {
		calls++
		if calls < 3 {
			return "", classifyAPIError("list folders", apiError(503, ""))
		}
		return "next-page", nil
	})
	if err != nil {
		t.Fatalf("expected success after transient failures: %v", err)
	}
	if id != "next-page" {
		t.Fatalf("unexpected result: %q", id)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithRetryPermanentAbortsImmediately(t *testing.T) {
	c := retryClient(3)
	calls := 0
	_, err := c.withRetry(context.Background(), "find folder", func() (string, error) {
		calls++
		return "", classifyAPIError("find folder", apiError(401, ""))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not retry, got %d attempts", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	c := retryClient(2)
	calls := 0
	_, err := c.withRetry(context.Background(), "upload x", func() (string, error) {
		calls++
		return "", classifyAPIError("upload x", apiError(503, ""))
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", calls)
	}
}

func TestEscapeQuery(t *testing.T) {
	cases := map[string]string{
		"plain":          "plain",
		"it's":           `it\'s`,
		`back\slash`:     `back\\slash`,
		`mix'ed\'quotes`: `mix\'ed\\\'quotes`,
	}
	for in, want := range cases {
		if got := escapeQuery(in); got != want {
			t.Errorf("escapeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	// "é" as decomposed (e + combining acute) must normalize to the composed form.
	decomposed := "résumé.txt"
	composed := "résumé.txt"
	if got := normalizeName(decomposed); got != composed {
		t.Fatalf("expected NFC form %q, got %q", composed, got)
	}
	if got := normalizeName(composed); got != composed {
		t.Fatalf("composed form must be unchanged, got %q", got)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := saveToken(path, tok); err != nil {
		t.Fatalf("save token: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("token file must be 0600, got %v", info.Mode().Perm())
	}

	loaded, err := tokenFromFile(path)
	if err != nil {
		t.Fatalf("load token: %v", err)
	}
	if loaded.AccessToken != tok.AccessToken || loaded.RefreshToken != tok.RefreshToken {
		t.Fatalf("token mismatch: %+v", loaded)
	}
}

func TestTokenFromFileMissing(t *testing.T) {
	if _, err := tokenFromFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing token file")
	}
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	_, err := Authenticate(context.Background(), filepath.Join(t.TempDir(), "credentials.json"), "token.json")
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}
