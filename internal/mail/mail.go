// Package mail decides nothing about forum rules; it carries already composed messages
// from the storages to a queue and from the queue to an SMTP server.
package mail

import "context"

type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

// Mailer hands an email over for delivery. Implementations must not block on delivery itself.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}
