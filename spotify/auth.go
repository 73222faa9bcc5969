package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/forslund/spotify-skill/config"
)

// Authorize runs the one-time authorization-code flow: it prints the consent
// URL, waits for the redirect on the configured callback address, exchanges
// the code and saves the token to the token file.
func Authorize(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	c := newClient(cfg, log)

	redirect, err := url.Parse(cfg.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}
	state, err := randomState()
	if err != nil {
		return err
	}

	tokens := make(chan *oauth2.Token, 1)
	failures := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		token, err := c.auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "authorization failed", http.StatusForbidden)
			failures <- err
			return
		}
		fmt.Fprintln(w, "Authorized. You can close this window.")
		tokens <- token
	})

	server := &http.Server{Addr: redirect.Host, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			failures <- err
		}
	}()
	defer server.Shutdown(context.Background())

	fmt.Printf("Open this URL in a browser and approve access:\n\n%s\n\n", c.auth.AuthURL(state))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-failures:
		return fmt.Errorf("authorization failed: %w", err)
	case token := <-tokens:
		if err := SaveToken(cfg.Spotify.TokenFile, token); err != nil {
			return err
		}
		log.Info("authorization complete", zap.String("token_file", cfg.Spotify.TokenFile))
		return nil
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
