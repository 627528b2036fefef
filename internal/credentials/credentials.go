// Package credentials manages the Google OAuth client secrets and the
// persisted user token that authorize sends and spreadsheet reads.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"

	"github.com/byanjiong/mailmerge/internal/logger"
)

// Scopes requested from the user.
var Scopes = []string{
	gmail.GmailSendScope,
	sheets.SpreadsheetsReadonlyScope,
	drive.DriveMetadataReadonlyScope,
}

var (
	ErrCredentialsNotFound = errors.New("client credentials file not found")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenExists         = errors.New("token already exists")
)

// Provider loads client secrets from credentials.json and keeps the user
// token in token.json.
type Provider struct {
	credentialsPath string
	tokenPath       string
	log             *logger.Logger
}

// NewProvider creates a Provider for the given file paths.
func NewProvider(credentialsPath, tokenPath string, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		credentialsPath: credentialsPath,
		tokenPath:       tokenPath,
		log:             log.WithComponent("credentials"),
	}
}

// TokenPath returns the path of the persisted token.
func (p *Provider) TokenPath() string {
	return p.tokenPath
}

// Config parses the OAuth client secrets.
func (p *Provider) Config() (*oauth2.Config, error) {
	data, err := os.ReadFile(p.credentialsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, p.credentialsPath)
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return cfg, nil
}

// LoadToken reads the persisted token.
func (p *Provider) LoadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(p.tokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok to the token file, readable by the owner only.
func (p *Provider) SaveToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.tokenPath), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(p.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// Remove deletes the persisted token.
func (p *Provider) Remove() error {
	if err := os.Remove(p.tokenPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to remove token: %w", err)
	}
	p.log.Info().Str("path", p.tokenPath).Msg("token removed")
	return nil
}

// Client returns an HTTP client authorized with the persisted token.
// Refreshed tokens are written back to the token file.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}
	tok, err := p.LoadToken()
	if err != nil {
		return nil, err
	}

	src := &persistingSource{
		base: cfg.TokenSource(ctx, tok),
		last: tok.AccessToken,
		save: p.SaveToken,
		log:  p.log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// persistingSource saves every token that differs from the last one seen.
type persistingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last string
	save func(*oauth2.Token) error
	log  *logger.Logger
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.save(tok); err != nil {
			// The refreshed token still works for this process
			s.log.Warn().Err(err).Msg("could not persist refreshed token")
		}
	}
	return tok, nil
}
