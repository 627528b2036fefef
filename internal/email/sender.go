package email

import "context"

// Sender is the interface that mail transports must implement.
// Send either delivers the envelope or returns an error; errors wrapping
// ErrTransport concern only this message.
type Sender interface {
	Send(ctx context.Context, env *Envelope) error
}

// Message holds the resolved parts of one outgoing email.
type Message struct {
	From        string   // sender header, omitted when empty
	To          string   // primary recipient
	CC          string   // carbon copy, comma separated
	BCC         string   // blind carbon copy, comma separated
	Subject     string   // rendered subject
	HTMLBody    string   // rendered HTML body
	Attachments []string // file paths, in attachment order
}

// Envelope is a transport-ready message.
type Envelope struct {
	// Raw is the RFC 5322 message.
	Raw []byte
	// Attached is the number of attachment parts actually included.
	Attached int
	// Skipped holds one *AttachmentError per attachment left out.
	Skipped []error
}
