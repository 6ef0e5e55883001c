package email

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// Notifier adapts a Sender to the single-recipient plain-text send the
// outbox email executor drives. The body is escaped and wrapped in minimal
// HTML; paragraph breaks survive.
type Notifier struct {
	sender Sender
	from   string

	// ReplyTo is optional; empty leaves the provider default.
	ReplyTo string
}

// NewNotifier creates a Notifier over the given sender.
func NewNotifier(sender Sender, from string) *Notifier {
	return &Notifier{sender: sender, from: from}
}

// Send delivers one notification email and returns the provider message id.
// PRE: to is a valid address, subject is non-empty
// POST: Email queued for delivery
func (n *Notifier) Send(ctx context.Context, to string, subject string, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("notification email has no recipient")
	}

	var b strings.Builder
	for _, para := range strings.Split(body, "\n\n") {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}

	result, err := n.sender.Send(ctx, SendRequest{
		To:      []string{to},
		From:    n.from,
		ReplyTo: n.ReplyTo,
		Subject: subject,
		HTML:    b.String(),
	})
	if err != nil {
		return "", err
	}
	return result.MessageID, nil
}
