package mail

import (
	"context"
	"errors"
)

// ErrNoRecipient is returned when a Message has no To address.
var ErrNoRecipient = errors.New("mail: message has no recipient")

// Message is one outgoing email. HTML is required; Text is optional.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
