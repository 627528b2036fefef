package dispatch

import (
	"fmt"
	"html"
	"strings"
)

const closingBody = "</body>"

// TrackerURL formats the open-tracking URL for one recipient.
func TrackerURL(baseURL, dispatchID, primaryAddress string) string {
	if primaryAddress == "" {
		primaryAddress = "unknown"
	}
	return fmt.Sprintf("%s?id=%s&user=%s", baseURL, dispatchID, primaryAddress)
}

// Pixel returns an invisible 1x1 image tag pointing at trackerURL.
func Pixel(trackerURL string) string {
	return fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none;" alt="" />`, html.EscapeString(trackerURL))
}

// InjectPixel adds the tracking pixel to a rendered body unless marker already
// occurs in it. The pixel goes right before the last </body>, matched
// case-insensitively, or at the end when there is none.
func InjectPixel(body, trackerURL, marker string) string {
	if marker == "" {
		marker = trackerURL
	}
	if marker != "" && (strings.Contains(body, marker) || strings.Contains(body, html.EscapeString(marker))) {
		return body
	}

	pixel := Pixel(trackerURL)
	idx := lastIndexFold(body, closingBody)
	if idx < 0 {
		return body + pixel
	}
	return body[:idx] + pixel + body[idx:]
}

func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
