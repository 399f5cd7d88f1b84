package mail

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

// Notifier implements authcore.Notifier by rendering Templates and handing
// the result to a Sender. Links point at FrontendURL.
type Notifier struct {
	sender      Sender
	templates   *Templates
	frontendURL string
	verifyTTL   time.Duration
	resetTTL    time.Duration
}

// NotifierConfig configures NewNotifier.
type NotifierConfig struct {
	FrontendURL string
	Product     string
	// VerificationTTL and ResetTTL are shown to the reader as the link
	// lifetime of each mail. Zero means one hour.
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// NewNotifier parses the templates and returns a Notifier sending through sender.
func NewNotifier(sender Sender, cfg NotifierConfig) (*Notifier, error) {
	if sender == nil {
		return nil, errors.New("mail: sender is required")
	}
	templates, err := NewTemplates(cfg.Product)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		sender:      sender,
		templates:   templates,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		verifyTTL:   orHour(cfg.VerificationTTL),
		resetTTL:    orHour(cfg.ResetTTL),
	}, nil
}

func orHour(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

func (n *Notifier) SendVerification(ctx context.Context, to, name, token string) error {
	return n.send(ctx, KindVerification, to, Data{
		Name:    name,
		Link:    n.link("/verify-email", token),
		Expires: humanDuration(n.verifyTTL),
	})
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, name, token string) error {
	return n.send(ctx, KindPasswordReset, to, Data{
		Name:    name,
		Link:    n.link("/reset-password", token),
		Expires: humanDuration(n.resetTTL),
	})
}

func (n *Notifier) SendPasswordChanged(ctx context.Context, to, name string) error {
	return n.send(ctx, KindPasswordChanged, to, Data{Name: name})
}

func (n *Notifier) send(ctx context.Context, kind Kind, to string, data Data) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	subject, html, err := n.templates.Render(kind, data)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{To: to, Subject: subject, HTML: html})
}

func (n *Notifier) link(path, token string) string {
	return n.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func humanDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0 && d >= 24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0 && d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

var _ authcore.Notifier = (*Notifier)(nil)
