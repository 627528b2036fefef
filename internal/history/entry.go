package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Delimiter separates fields of a history line. It is a character that does
// not occur in addresses and is rare in subjects or body text.
const Delimiter = "¦"

// TimeLayout is the timestamp format of a history line.
const TimeLayout = "2006-01-02 15:04:05"

// PreviewLen is the maximum preview length, in characters.
const PreviewLen = 100

const entryFields = 8

// Entry is one successful send.
type Entry struct {
	SentAt      time.Time
	DispatchID  string
	To          string
	CC          string
	BCC         string
	Subject     string
	Preview     string
	Attachments int
}

// Preview flattens body to a single line of at most PreviewLen characters.
func Preview(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(flat) <= PreviewLen {
		return flat
	}
	runes := []rune(flat)
	return string(runes[:PreviewLen])
}

// Line renders e as one history line, without the trailing newline.
func (e Entry) Line() string {
	fields := []string{
		e.SentAt.Format(TimeLayout),
		e.DispatchID,
		e.To,
		e.CC,
		e.BCC,
		e.Subject,
		Preview(e.Preview),
		strconv.Itoa(e.Attachments),
	}
	for i, f := range fields {
		fields[i] = sanitize(f)
	}
	return strings.Join(fields, " "+Delimiter+" ")
}

// sanitize keeps a field on one line and free of the delimiter.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, Delimiter, "|")
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}

// ParseLine parses a delimited history line.
func ParseLine(line string) (Entry, error) {
	parts := strings.Split(line, Delimiter)
	if len(parts) < 3 {
		return Entry{}, fmt.Errorf("%w: %d fields", ErrInvalidEntry, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	e := Entry{DispatchID: parts[1], To: parts[2]}
	if t, err := time.ParseInLocation(TimeLayout, parts[0], time.Local); err == nil {
		e.SentAt = t
	}
	if len(parts) == entryFields {
		e.CC, e.BCC, e.Subject, e.Preview = parts[3], parts[4], parts[5], parts[6]
		e.Attachments, _ = strconv.Atoi(parts[7])
	}
	return e, nil
}

// NormalizeAddress is the form addresses are compared in.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// addressFromLine extracts the sent address from a history line in either the
// delimited or the legacy bare-address format.
func addressFromLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if strings.Contains(line, Delimiter) {
		e, err := ParseLine(line)
		if err != nil || e.To == "" {
			return "", false
		}
		return NormalizeAddress(e.To), true
	}
	if strings.ContainsAny(line, " \t") || !strings.Contains(line, "@") {
		return "", false
	}
	return NormalizeAddress(line), true
}
