package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// base64LineLen is the RFC 2045 line length for base64 bodies.
const base64LineLen = 76

// Build assembles msg into a multipart/mixed message: one HTML part followed
// by one part per attachment. Attachments that cannot be read or encoded are
// left out and reported in Envelope.Skipped.
func Build(msg Message) (*Envelope, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writeHTMLPart(mw, msg.HTMLBody); err != nil {
		return nil, fmt.Errorf("failed to write html part: %w", err)
	}

	env := &Envelope{}
	for _, path := range msg.Attachments {
		if err := writeAttachment(mw, path); err != nil {
			var ae *AttachmentError
			if !errors.As(err, &ae) {
				return nil, fmt.Errorf("failed to write attachment part: %w", err)
			}
			env.Skipped = append(env.Skipped, ae)
			continue
		}
		env.Attached++
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	var raw bytes.Buffer
	writeHeader(&raw, "From", formatAddressList(msg.From))
	writeHeader(&raw, "To", formatAddressList(msg.To))
	writeHeader(&raw, "Cc", formatAddressList(msg.CC))
	writeHeader(&raw, "Bcc", formatAddressList(msg.BCC))
	writeHeader(&raw, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&raw, "MIME-Version", "1.0")
	writeHeader(&raw, "Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	raw.WriteString("\r\n")
	raw.Write(body.Bytes())

	env.Raw = raw.Bytes()
	return env, nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// formatAddressList re-encodes display names when the list parses, and
// passes the value through untouched otherwise.
func formatAddressList(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	list, err := mail.ParseAddressList(value)
	if err != nil {
		return value
	}
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.String()
	}
	return strings.Join(out, ", ")
}

func writeHTMLPart(mw *multipart.Writer, html string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", `text/html; charset="utf-8"`)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(html)); err != nil {
		return err
	}
	return qp.Close()
}

// writeAttachment adds one file as a typed part. Failures that concern only
// this file come back as *AttachmentError.
func writeAttachment(mw *multipart.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &AttachmentError{Path: path, Err: err}
	}

	main, sub := splitType(ContentType(path))
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": filepath.Base(path),
	}))

	switch main {
	case "text":
		if !utf8.Valid(data) {
			return &AttachmentError{Path: path, Err: errors.New("text file is not valid UTF-8")}
		}
		h.Set("Content-Type", mime.FormatMediaType(main+"/"+sub, map[string]string{"charset": "utf-8"}))
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write(data); err != nil {
			return err
		}
		return qp.Close()
	default:
		// image, audio and everything else go out base64 encoded
		h.Set("Content-Type", main+"/"+sub)
	}

	h.Set("Content-Transfer-Encoding", "base64")
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	return writeBase64(w, data)
}

func writeBase64(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > base64LineLen {
		if _, err := fmt.Fprintf(w, "%s\r\n", enc[:base64LineLen]); err != nil {
			return err
		}
		enc = enc[base64LineLen:]
	}
	if enc == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s\r\n", enc)
	return err
}
