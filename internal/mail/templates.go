package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type Kind string

const (
	KindConfirmAccount  Kind = "confirm_account"
	KindConfirmNewEmail Kind = "confirm_new_email"
	KindResetPassword   Kind = "reset_password"
)

// Data fills the templates. Link already contains the token.
type Data struct {
	Username string
	Link     string
}

type template struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = map[Kind]template{
	KindConfirmAccount: {
		subject: "Confirm your account",
		text: texttemplate.Must(texttemplate.New("confirm.txt").Parse(
			"Dear {{.Username}},\n\nWelcome to the forum!\n\nTo confirm your account please follow this link:\n\n{{.Link}}\n")),
		html: htmltemplate.Must(htmltemplate.New("confirm.html").Parse(
			`<p>Dear {{.Username}},</p><p>Welcome to the forum!</p><p>To confirm your account please <a href="{{.Link}}">click here</a>.</p>`)),
	},
	KindConfirmNewEmail: {
		subject: "Confirm your new email",
		text: texttemplate.Must(texttemplate.New("confirm_new_email.txt").Parse(
			"Dear {{.Username}},\n\nTo confirm your new email address please follow this link:\n\n{{.Link}}\n")),
		html: htmltemplate.Must(htmltemplate.New("confirm_new_email.html").Parse(
			`<p>Dear {{.Username}},</p><p>To confirm your new email address please <a href="{{.Link}}">click here</a>.</p>`)),
	},
	KindResetPassword: {
		subject: "Instructions to reset your password",
		text: texttemplate.Must(texttemplate.New("reset_password.txt").Parse(
			"Dear {{.Username}},\n\nTo reset your password please follow this link:\n\n{{.Link}}\n\nIf you have not requested a password reset simply ignore this message.\n")),
		html: htmltemplate.Must(htmltemplate.New("reset_password.html").Parse(
			`<p>Dear {{.Username}},</p><p>To reset your password please <a href="{{.Link}}">click here</a>.</p><p>If you have not requested a password reset simply ignore this message.</p>`)),
	},
}

// Compose renders the email of the given kind for a single recipient.
func Compose(kind Kind, to string, data Data) (Email, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return Email{}, fmt.Errorf("unknown email kind %q", kind)
	}

	var text, html bytes.Buffer
	if err := tmpl.text.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("failed to render %s text: %w", kind, err)
	}
	if err := tmpl.html.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("failed to render %s html: %w", kind, err)
	}

	return Email{
		To:      []string{to},
		Subject: tmpl.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
