package mail

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// Message is an outgoing email with a plain-text and an HTML body.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers email.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// VerificationLink builds the activation link mailed to new accounts.
func VerificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/verify-email?token=" + url.QueryEscape(token)
}

var verificationHTML = template.Must(template.New("verify").Parse(
	`<p>Hello {{.Username}},</p>
<p>Please verify your email address by clicking the link below:</p>
<p><a href="{{.Link}}">Verify your email</a></p>
<p>The link expires in {{.Expiry}}.</p>`))

// VerificationMessage renders the email sent after registration.
func VerificationMessage(to, username, link, expiry string) (*Message, error) {
	var html strings.Builder
	data := struct{ Username, Link, Expiry string }{username, link, expiry}
	if err := verificationHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render verification email: %w", err)
	}

	text := fmt.Sprintf("Hello %s,\n\nPlease verify your email address by opening this link:\n%s\n\nThe link expires in %s.\n",
		username, link, expiry)

	return &Message{
		To:      to,
		Subject: "Verify your email",
		Text:    text,
		HTML:    html.String(),
	}, nil
}
