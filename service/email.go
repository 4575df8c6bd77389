package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/logger"
)

// Email is one outgoing message.
type Email struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// ResendMailer sends email through the Resend API.
type ResendMailer struct {
	client  *resend.Client
	from    string
	timeout time.Duration
}

// NewResendMailer creates a mailer that sends through Resend.
func NewResendMailer(cfg *config.EmailConfig) *ResendMailer {
	client := resend.NewCustomClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIKey)
	return &ResendMailer{client: client, from: cfg.From, timeout: cfg.Timeout}
}

func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	logger.Debug(ctx, "email sent", "id", sent.Id, "to", strings.Join(email.To, ","))
	return nil
}

// LogMailer only logs messages. It stands in for a real sender when no
// API key is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, email Email) error {
	logger.Info(ctx, "email delivery skipped (no sender configured)",
		"to", strings.Join(email.To, ","),
		"subject", email.Subject,
	)
	return nil
}

var signatureRequestTmpl = template.Must(template.New("signature_request").Parse(`<p>{{.PartyName}} 様</p>
<p>「{{.Title}}」への電子署名をお願いいたします。</p>
<p><a href="{{.SignURL}}">契約書を確認して署名する</a></p>
<p>本メールは契約管理システムから自動送信されています。</p>`))

// signatureRequestEmail builds the message asking party to sign c.
func signatureRequestEmail(c *model.Contract, party model.Party, baseURL string) (Email, error) {
	signURL := fmt.Sprintf("%s/contracts/%s/sign?party=%s", strings.TrimRight(baseURL, "/"), c.ID, party.ID)

	var buf bytes.Buffer
	err := signatureRequestTmpl.Execute(&buf, map[string]string{
		"PartyName": party.Name,
		"Title":     c.Title,
		"SignURL":   signURL,
	})
	if err != nil {
		return Email{}, fmt.Errorf("failed to render email: %w", err)
	}

	return Email{
		To:      []string{party.Email},
		Subject: fmt.Sprintf("【署名依頼】%s", c.Title),
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s 様\n「%s」への電子署名をお願いいたします。\n%s\n", party.Name, c.Title, signURL),
	}, nil
}
