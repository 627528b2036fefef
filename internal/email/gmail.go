package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig holds the configuration for the Gmail email sender.
type GmailConfig struct {
	// CredentialsJSON is a service account credentials JSON with domain-wide
	// delegation for SenderAddress.
	CredentialsJSON string
	// SenderAddress is the mailbox emails are sent from.
	SenderAddress string
}

// GmailSender implements Sender using the Gmail API.
type GmailSender struct {
	service *gmail.Service
}

// NewGmailSender creates a GmailSender from a service account that
// impersonates the sender mailbox.
func NewGmailSender(ctx context.Context, cfg GmailConfig) (*GmailSender, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("gmail: credentials JSON is required")
	}
	if cfg.SenderAddress == "" {
		return nil, fmt.Errorf("gmail: sender address is required")
	}

	jwtConfig, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
	}
	jwtConfig.Subject = cfg.SenderAddress

	return NewGmailSenderWithClient(ctx, jwtConfig.Client(ctx))
}

// NewGmailSenderWithToken creates a GmailSender using OAuth2 client credentials + refresh token.
// This is useful for personal Gmail accounts without domain-wide delegation.
func NewGmailSenderWithToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*GmailSender, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("gmail: refresh token is required")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}

	token := &oauth2.Token{
		RefreshToken: refreshToken,
	}

	return NewGmailSenderWithClient(ctx, oauthCfg.Client(ctx, token))
}

// NewGmailSenderWithClient creates a GmailSender on an already authorized
// HTTP client. Extra options are passed to the Gmail service.
func NewGmailSenderWithClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GmailSender, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}
	return &GmailSender{service: svc}, nil
}

// Send sends a prepared message via the Gmail API on behalf of the
// authenticated user. API and network failures wrap ErrTransport; context
// cancellation is returned as is.
func (g *GmailSender) Send(ctx context.Context, env *Envelope) error {
	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(env.Raw),
	}

	_, err := g.service.Users.Messages.Send("me", gmailMsg).Context(ctx).Do()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return wrapTransport(fmt.Errorf("gmail: failed to send email: %w", err))
	}

	return nil
}
