package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type parsedPart struct {
	contentType string
	params      map[string]string
	disposition string
	filename    string
	body        []byte
}

func parseEnvelope(t *testing.T, env *Envelope) (*mail.Message, []parsedPart) {
	t.Helper()

	msg, err := mail.ReadMessage(bytes.NewReader(env.Raw))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	var parts []parsedPart
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)

		ct, ctParams, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
		require.NoError(t, err)

		raw, err := io.ReadAll(p)
		require.NoError(t, err)

		var body []byte
		switch p.Header.Get("Content-Transfer-Encoding") {
		case "base64":
			body, err = io.ReadAll(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(bytes.ReplaceAll(raw, []byte("\r\n"), nil))))
			require.NoError(t, err)
		default:
			body, err = io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
			require.NoError(t, err)
		}

		pp := parsedPart{contentType: ct, params: ctParams, body: body}
		if cd := p.Header.Get("Content-Disposition"); cd != "" {
			disp, dParams, err := mime.ParseMediaType(cd)
			require.NoError(t, err)
			pp.disposition = disp
			pp.filename = dParams["filename"]
		}
		parts = append(parts, pp)
	}
	return msg, parts
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestBuild_HTMLOnly(t *testing.T) {
	t.Parallel()

	env, err := Build(Message{
		From:     "Sender <me@example.com>",
		To:       "a@x.com",
		CC:       "c@x.com",
		BCC:      "b@x.com",
		Subject:  "Hello Ann",
		HTMLBody: "<html><body><p>Hi Ann,</p></body></html>",
	})
	require.NoError(t, err)
	require.Zero(t, env.Attached)
	require.Empty(t, env.Skipped)

	msg, parts := parseEnvelope(t, env)
	require.Equal(t, "Hello Ann", msg.Header.Get("Subject"))
	require.Equal(t, "1.0", msg.Header.Get("MIME-Version"))

	to, err := msg.Header.AddressList("To")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", to[0].Address)

	from, err := msg.Header.AddressList("From")
	require.NoError(t, err)
	require.Equal(t, "Sender", from[0].Name)

	require.NotEmpty(t, msg.Header.Get("Cc"))
	require.NotEmpty(t, msg.Header.Get("Bcc"))

	require.Len(t, parts, 1)
	require.Equal(t, "text/html", parts[0].contentType)
	require.Equal(t, "utf-8", parts[0].params["charset"])
	require.Equal(t, "<html><body><p>Hi Ann,</p></body></html>", string(parts[0].body))
}

func TestBuild_OmitsEmptyHeaders(t *testing.T) {
	t.Parallel()

	env, err := Build(Message{CC: "c@x.com", Subject: "s", HTMLBody: "b"})
	require.NoError(t, err)

	msg, _ := parseEnvelope(t, env)
	require.Empty(t, msg.Header.Get("From"))
	require.Empty(t, msg.Header.Get("To"))
	require.Empty(t, msg.Header.Get("Bcc"))
}

func TestBuild_EncodesNonASCIISubject(t *testing.T) {
	t.Parallel()

	env, err := Build(Message{To: "a@x.com", Subject: "Grüße", HTMLBody: "b"})
	require.NoError(t, err)

	msg, _ := parseEnvelope(t, env)
	decoded, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, "Grüße", decoded)
}

func TestBuild_TypedAttachments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	paths := []string{
		writeFile(t, dir, "notes.txt", []byte("hello notes")),
		writeFile(t, dir, "logo.png", png),
		writeFile(t, dir, "clip.mp3", []byte("ID3\x03\x00\x00\x00")),
		writeFile(t, dir, "report.pdf", []byte("%PDF-1.4 fake")),
		writeFile(t, dir, "blob.unknownext", []byte{0x00, 0x01, 0x02, 0x03}),
	}

	env, err := Build(Message{To: "a@x.com", Subject: "s", HTMLBody: "<p>b</p>", Attachments: paths})
	require.NoError(t, err)
	require.Equal(t, 5, env.Attached)
	require.Empty(t, env.Skipped)

	_, parts := parseEnvelope(t, env)
	require.Len(t, parts, 6)

	text := parts[1]
	require.Equal(t, "text/plain", text.contentType)
	require.Equal(t, "attachment", text.disposition)
	require.Equal(t, "notes.txt", text.filename)
	require.Equal(t, "hello notes", string(text.body))

	image := parts[2]
	require.Equal(t, "image/png", image.contentType)
	require.Equal(t, "logo.png", image.filename)
	require.Equal(t, png, image.body)

	audio := parts[3]
	require.Equal(t, "audio/mpeg", audio.contentType)
	require.Equal(t, "clip.mp3", audio.filename)

	pdf := parts[4]
	require.Equal(t, "application/pdf", pdf.contentType)
	require.Equal(t, []byte("%PDF-1.4 fake"), pdf.body)

	blob := parts[5]
	require.Equal(t, MIMEOctetStream, blob.contentType)
	require.Equal(t, "blob.unknownext", blob.filename)
	require.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, blob.body)
}

func TestBuild_SkipsUnreadableAttachments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeFile(t, dir, "ok.pdf", []byte("%PDF-1.4"))
	badText := writeFile(t, dir, "latin1.txt", []byte{0xff, 0xfe, 0x41})
	missing := filepath.Join(dir, "gone.pdf")

	env, err := Build(Message{To: "a@x.com", Subject: "s", HTMLBody: "b", Attachments: []string{missing, good, badText}})
	require.NoError(t, err)
	require.Equal(t, 1, env.Attached)
	require.Len(t, env.Skipped, 2)

	for _, e := range env.Skipped {
		require.ErrorIs(t, e, ErrAttachment)
	}
	var ae *AttachmentError
	require.ErrorAs(t, env.Skipped[0], &ae)
	require.Equal(t, missing, ae.Path)
	require.ErrorIs(t, env.Skipped[0], os.ErrNotExist)

	_, parts := parseEnvelope(t, env)
	require.Len(t, parts, 2)
	require.Equal(t, "ok.pdf", parts[1].filename)
}

func TestContentType(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"page.html", []byte("<p>x</p>"), "text/html"},
		{"photo.JPG", []byte{0xff, 0xd8, 0xff}, "image/jpeg"},
		{"archive.tar.gz", []byte{0x1f, 0x8b}, MIMEOctetStream},
		{"noext", []byte("%PDF-1.7\n"), "application/pdf"},
	}

	for _, tt := range tests {
		path := writeFile(t, dir, tt.name, tt.data)
		require.Equal(t, tt.want, ContentType(path), tt.name)
	}
}

func TestWriteBase64_WrapsLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeBase64(&buf, bytes.Repeat([]byte("a"), 200)))

	for _, line := range bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\r\n")), []byte("\r\n")) {
		require.LessOrEqual(t, len(line), base64LineLen)
	}
}
