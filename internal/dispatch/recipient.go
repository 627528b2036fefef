package dispatch

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/byanjiong/mailmerge/internal/record"
)

// Field names the engine reads from or adds to a record.
const (
	FieldEmail      = "email"
	FieldTo         = "to"
	FieldCC         = "cc"
	FieldBCC        = "bcc"
	FieldSubject    = "subject"
	FieldBody       = "body"
	FieldDispatchID = "__dispatch_id"
	FieldTrackerURL = "tracker_url"

	attachmentPrefix = "attachment"
)

const (
	dispatchIDLen      = 8
	dispatchIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// HasDeliverableAddress reports whether r has a non-empty email, to, cc or
// bcc field.
func HasDeliverableAddress(r *record.Record) bool {
	return r.First(FieldEmail, FieldTo, FieldCC, FieldBCC) != ""
}

// PrimaryAddress returns the email field, falling back to to.
func PrimaryAddress(r *record.Record) string {
	return r.First(FieldEmail, FieldTo)
}

// ResolveAttachments collects the attachment* fields of r whose value is an
// existing path, in column order. Missing paths yield one warning each.
func ResolveAttachments(r *record.Record) ([]string, []Event) {
	var (
		paths    []string
		warnings []Event
	)
	for _, key := range r.Keys() {
		if !strings.HasPrefix(key, attachmentPrefix) {
			continue
		}
		value := strings.TrimSpace(r.Value(key))
		if value == "" {
			continue
		}
		if _, err := os.Stat(value); err != nil {
			warnings = append(warnings, warnf("Attachment skipped (not found): %s", value))
			continue
		}
		paths = append(paths, value)
	}
	return paths, warnings
}

// NewDispatchID returns a random 8-character alphanumeric token drawn
// uniformly from the alphabet.
func NewDispatchID() string {
	return randomToken(rand.Reader, dispatchIDLen)
}

// randomToken reads bytes from src and keeps those below the largest multiple
// of the alphabet size, so every character is equally likely.
func randomToken(src io.Reader, n int) string {
	const limit = 256 - 256%len(dispatchIDAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(src, buf); err != nil {
			panic(fmt.Sprintf("dispatch: random source failed: %v", err))
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, dispatchIDAlphabet[int(b)%len(dispatchIDAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
