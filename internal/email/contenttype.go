package email

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MIMEOctetStream is used for anything that cannot be classified.
const MIMEOctetStream = "application/octet-stream"

// compressedExt are extensions that denote an encoding rather than a type;
// such files are sent as opaque binaries.
var compressedExt = map[string]struct{}{
	".gz":  {},
	".bz2": {},
	".xz":  {},
	".z":   {},
	".br":  {},
}

// ContentType guesses the media type of the file at path, without
// parameters. The extension is tried first, then the content is sniffed.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := compressedExt[ext]; ok {
		return MIMEOctetStream
	}

	if ct := mime.TypeByExtension(ext); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}

	if m, err := mimetype.DetectFile(path); err == nil {
		if mt, _, err := mime.ParseMediaType(m.String()); err == nil {
			return mt
		}
	}

	return MIMEOctetStream
}

// splitType returns the main and sub type of a media type.
func splitType(mediaType string) (string, string) {
	main, sub, ok := strings.Cut(mediaType, "/")
	if !ok || main == "" || sub == "" {
		return "application", "octet-stream"
	}
	return main, sub
}
