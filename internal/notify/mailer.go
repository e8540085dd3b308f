package notify

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/transmailifier/transmailifier/internal/config"
	"github.com/transmailifier/transmailifier/internal/logger"
	"github.com/transmailifier/transmailifier/internal/model"
)

// Sender delivers built messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer mails the transactions as a CSV attachment.
type SMTPMailer struct {
	Config config.MailerConfig
	Sender Sender // nil means a go-mail client dialing Config
	Now    func() time.Time
}

// NewSMTPMailer builds a mailer from resolved mailer settings.
func NewSMTPMailer(cfg config.MailerConfig) *SMTPMailer {
	return &SMTPMailer{Config: cfg, Now: time.Now}
}

// NewClient configures a go-mail client for cfg. PLAIN auth is used when a
// username is set, and STARTTLS whenever the server offers it.
func NewClient(cfg config.MailerConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort()),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("configuring smtp client: %w", err)
	}
	return c, nil
}

// Notify sends one message to all recipients.
func (m *SMTPMailer) Notify(ctx context.Context, txns []model.Transaction, subject string, recipients []string) error {
	fail := func(err error) error {
		return &NotificationError{Recipients: recipients, Err: err}
	}
	if len(recipients) == 0 {
		return fail(ErrNoRecipients)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	msg, err := NewMessage(Message{
		From:    m.Config.From,
		To:      recipients,
		Subject: subject,
		Date:    m.now(),
		Txns:    txns,
	})
	if err != nil {
		return fail(err)
	}

	sender := m.Sender
	if sender == nil {
		if sender, err = NewClient(m.Config); err != nil {
			return fail(err)
		}
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("addr", m.Config.Addr()).Int("count", len(txns)).Msg("sending mail")
	if err := sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fail(err)
	}
	return nil
}

func (m *SMTPMailer) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// Message is the content of one notification mail.
type Message struct {
	From    string
	To      []string
	Subject string
	Date    time.Time
	Txns    []model.Transaction
}

// AttachmentName returns the CSV file name for a message sent at t.
func AttachmentName(t time.Time) string {
	return "transactions-" + t.Format("20060102-150405") + ".csv"
}

// NewMessage builds the mail for msg: a plain text summary with the
// transactions attached as text/csv.
func NewMessage(msg Message) (*mail.Msg, error) {
	var attachment bytes.Buffer
	if err := WriteCSV(&attachment, msg.Txns); err != nil {
		return nil, fmt.Errorf("encoding attachment: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(msg.Date)
	m.SetMessageIDWithValue(uuid.NewString() + "@transmailifier")
	m.SetBodyString(mail.TypeTextPlain, summaryText(msg.Txns))

	err := m.AttachReader(AttachmentName(msg.Date), &attachment,
		mail.WithFileContentType(mail.ContentType("text/csv")))
	if err != nil {
		return nil, fmt.Errorf("attaching transactions: %w", err)
	}
	return m, nil
}

func summaryText(txns []model.Transaction) string {
	if len(txns) == 0 {
		return "No new transactions.\r\n"
	}
	first, last := txns[0].Time(), txns[0].Time()
	for _, t := range txns[1:] {
		if t.Time().Before(first) {
			first = t.Time()
		}
		if t.Time().After(last) {
			last = t.Time()
		}
	}
	noun := "transactions"
	if len(txns) == 1 {
		noun = "transaction"
	}
	return fmt.Sprintf("%d new %s from %s to %s, see the attached CSV.\r\n",
		len(txns), noun, first.Format(dateFormat), last.Format(dateFormat))
}
