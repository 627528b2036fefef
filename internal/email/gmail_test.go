package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestGmail(t *testing.T, handler http.HandlerFunc) *GmailSender {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sender, err := NewGmailSenderWithClient(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return sender
}

func TestGmailSender_SendEncodesRawMessage(t *testing.T) {
	t.Parallel()

	var gotPath, gotRaw string
	sender := newTestGmail(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body struct {
			Raw string `json:"raw"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotRaw = body.Raw
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	})

	raw := []byte("To: a@x.com\r\nSubject: hi\r\n\r\nbody??>>")
	err := sender.Send(context.Background(), &Envelope{Raw: raw})
	require.NoError(t, err)

	require.True(t, strings.HasSuffix(gotPath, "/users/me/messages/send"), gotPath)
	decoded, err := base64.URLEncoding.DecodeString(gotRaw)
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
}

func TestGmailSender_APIErrorIsTransportError(t *testing.T) {
	t.Parallel()

	sender := newTestGmail(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid To header"}}`))
	})

	err := sender.Send(context.Background(), &Envelope{Raw: []byte("x")})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTransport)
	require.Contains(t, err.Error(), "Invalid To header")
}

func TestGmailSender_CanceledContextIsNotTransportError(t *testing.T) {
	t.Parallel()

	sender := newTestGmail(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, &Envelope{Raw: []byte("x")})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrTransport)
}

func TestNewGmailSender_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewGmailSender(context.Background(), GmailConfig{SenderAddress: "me@x.com"})
	require.Error(t, err)

	_, err = NewGmailSender(context.Background(), GmailConfig{CredentialsJSON: "{}"})
	require.Error(t, err)

	_, err = NewGmailSender(context.Background(), GmailConfig{CredentialsJSON: "not json", SenderAddress: "me@x.com"})
	require.Error(t, err)

	_, err = NewGmailSenderWithToken(context.Background(), "id", "secret", "")
	require.Error(t, err)
}
