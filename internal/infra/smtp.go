package infra

import (
	"bytes"
	"fmt"
	"net/smtp"

	"invoiceflow/internal/config"

	"github.com/jordan-wright/email"
)

// Attachment is an in-memory file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outgoing email.
type Message struct {
	To          []string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Mailer sends invoice notifications over SMTP.
type Mailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Send delivers msg. Relays without credentials are used unauthenticated.
func (m *Mailer) Send(msg Message) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = msg.To
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)

	for _, a := range msg.Attachments {
		if _, err := e.Attach(bytes.NewReader(a.Data), a.Filename, a.ContentType); err != nil {
			return fmt.Errorf("mailer: attach %s: %w", a.Filename, err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
