package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drv "google.golang.org/api/drive/v3"

	"git.home.luguber.info/inful/repobackup/internal/logfields"
)

// Authenticate returns an HTTP client authorized for the Drive scope.
// A cached token is used when present; otherwise the installed-app OAuth
// flow runs with a localhost redirect and the new token is cached.
func Authenticate(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	b, err := os.ReadFile(credentialsFile) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", credentialsFile, err)
	}

	cfg, err := google.ConfigFromJSON(b, drv.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		slog.Debug("No cached token, starting OAuth flow", logfields.Path(tokenFile))
		tok, err = runLocalFlow(ctx, cfg)
		if err != nil {
			return nil, &AuthError{Op: "oauth flow", Err: err}
		}
		if err := saveToken(tokenFile, tok); err != nil {
			slog.Warn("Failed to cache OAuth token", logfields.Path(tokenFile), logfields.Error(err))
		}
	}

	return cfg.Client(ctx, tok), nil
}

// runLocalFlow performs the installed-app authorization flow: a one-shot
// HTTP listener on a loopback port receives the redirect with the code.
func runLocalFlow(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start local listener: %w", err)
	}
	defer ln.Close()

	state := uuid.NewString()
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("oauth state mismatch")}
			return
		}
		code := req.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("redirect did not contain an authorization code")}
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		results <- result{code: code}
	})

	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	fmt.Printf("Open the following URL in your browser to authorize access:\n\n  %s\n\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		return tok, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode cached token: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}
