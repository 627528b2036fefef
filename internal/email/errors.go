package email

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a rejection of a single message by the mail API.
	ErrTransport = errors.New("mail transport rejected message")

	// ErrAttachment marks an attachment that could not be read or encoded.
	ErrAttachment = errors.New("attachment skipped")
)

// wrapTransport annotates err as a transport failure.
func wrapTransport(err error) error {
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// AttachmentError describes one attachment left out of a message.
type AttachmentError struct {
	Path string
	Err  error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrAttachment, e.Path, e.Err)
}

func (e *AttachmentError) Unwrap() []error {
	return []error{ErrAttachment, e.Err}
}
