package credentials

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Authorize runs the installed-app flow: it serves a one-shot callback on a
// loopback port, hands the consent URL to prompt, exchanges the returned code
// and saves the token. It refuses to run while a token exists.
func (p *Provider) Authorize(ctx context.Context, prompt func(authURL string) error) error {
	if _, err := os.Stat(p.tokenPath); err == nil {
		return fmt.Errorf("%w: %s; remove it first", ErrTokenExists, p.tokenPath)
	}

	cfg, err := p.Config()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to open callback listener: %w", err)
	}
	cfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state := uuid.NewString()
	codes := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, codes),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error().Err(err).Msg("callback server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	p.log.Info().Str("redirect", cfg.RedirectURL).Msg("waiting for authorization")
	if err := prompt(authURL); err != nil {
		return err
	}

	var res callbackResult
	select {
	case res = <-codes:
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.err != nil {
		return res.err
	}

	tok, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := p.SaveToken(tok); err != nil {
		return err
	}

	p.log.Info().Str("path", p.tokenPath).Msg("authentication successful, token saved")
	return nil
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler accepts the first redirect carrying the expected state.
func callbackHandler(state string, out chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		var res callbackResult
		if msg := q.Get("error"); msg != "" {
			res.err = fmt.Errorf("authorization denied: %s", msg)
		} else if res.code = q.Get("code"); res.code == "" {
			res.err = errors.New("authorization response carried no code")
		}

		select {
		case out <- res:
		default:
			http.Error(w, "authorization already completed", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Authorization failed. You may close this window.")
			return
		}
		fmt.Fprintln(w, "Authorization complete. You may close this window.")
	})
	return mux
}
