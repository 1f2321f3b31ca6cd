package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"law_ledger_app_go/config"
	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"

	"github.com/microcosm-cc/bluemonday"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// SendEmail sends an email using Resend API
func SendEmail(cfg *config.Config, email *Email) error {
	log := logger.WithComponent("email")

	// In test mode, log the email instead of sending
	if cfg.EmailTestMode {
		logEmail(log, email)
		return nil
	}

	if cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}

	client := resend.NewClient(cfg.ResendAPIKey)
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom),
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	}
	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	log.WithFields(logrus.Fields{"id": sent.Id, "to": email.To}).Info("Email sent")
	return nil
}

func logEmail(log *logrus.Entry, email *Email) {
	log.WithFields(logrus.Fields{
		"to":      email.To,
		"subject": email.Subject,
		"body":    truncate(email.TextBody, 500),
	}).Info("Email logged (test mode, not sent)")
}

// truncate truncates a string to a maximum length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// AnchorFailedEmailData feeds the anchor failure templates
type AnchorFailedEmailData struct {
	LawyerName string
	CaseTitle  string
	CaseID     string
	LogID      string
	Version    int
	Attempts   int
	LastError  string
}

// emailPolicy is applied to rendered HTML bodies before they leave the process
var emailPolicy = bluemonday.UGCPolicy()

var (
	anchorFailedHTML = template.Must(template.New("anchor_failed.html").Parse(
		`<p>Hello {{.LawyerName}},</p>
<p>Version {{.Version}} of log <code>{{.LogID}}</code> in case <strong>{{.CaseTitle}}</strong> could not be anchored
to the ledger after {{.Attempts}} attempts.</p>
<p>Last error: {{.LastError}}</p>
<p>The entry is still visible and editable. Retry the anchor once the ledger is reachable.</p>`))

	anchorFailedText = texttemplate.Must(texttemplate.New("anchor_failed.txt").Parse(
		`Hello {{.LawyerName}},

Version {{.Version}} of log {{.LogID}} in case "{{.CaseTitle}}" could not be anchored to the ledger after {{.Attempts}} attempts.

Last error: {{.LastError}}

The entry is still visible and editable. Retry the anchor once the ledger is reachable.
`))
)

// BuildAnchorFailedEmail renders the notice sent to a lawyer when anchoring gives up
func BuildAnchorFailedEmail(to string, data AnchorFailedEmailData) (*Email, error) {
	var html, text bytes.Buffer
	if err := anchorFailedHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render anchor_failed.html: %w", err)
	}
	if err := anchorFailedText.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render anchor_failed.txt: %w", err)
	}
	return &Email{
		To:       []string{to},
		Subject:  fmt.Sprintf("Anchoring failed for %s", strings.TrimSpace(data.CaseTitle)),
		HTMLBody: emailPolicy.Sanitize(html.String()),
		TextBody: text.String(),
	}, nil
}

// AnchorFailureMailer notifies the case lawyer when a record is marked failed
type AnchorFailureMailer struct {
	db   *gorm.DB
	cfg  *config.Config
	send func(*config.Config, *Email) error
}

func NewAnchorFailureMailer(db *gorm.DB, cfg *config.Config) *AnchorFailureMailer {
	return &AnchorFailureMailer{db: db, cfg: cfg, send: SendEmail}
}

// AnchorFailed implements AnchorFailureNotifier
func (m *AnchorFailureMailer) AnchorFailed(ctx context.Context, record *models.AnchorRecord) {
	log := logger.WithComponent("email").WithFields(logrus.Fields{
		"log_id":  record.LogID,
		"version": record.Version,
	})

	var c models.Case
	if err := m.db.WithContext(ctx).Preload("Lawyer").First(&c, "id = ?", record.CaseID).Error; err != nil {
		log.WithError(err).Error("Failed to load case for anchor failure notice")
		return
	}
	if c.Lawyer == nil || c.Lawyer.Email == "" {
		log.Warn("Case lawyer has no email, skipping anchor failure notice")
		return
	}

	email, err := BuildAnchorFailedEmail(c.Lawyer.Email, AnchorFailedEmailData{
		LawyerName: c.Lawyer.Name,
		CaseTitle:  c.Title,
		CaseID:     c.ID,
		LogID:      record.LogID,
		Version:    record.Version,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
	})
	if err != nil {
		log.WithError(err).Error("Failed to build anchor failure notice")
		return
	}

	// Sent off the anchoring goroutine so a slow mail API never delays the queue
	go func(email *Email) {
		if err := m.send(m.cfg, email); err != nil {
			log.WithError(err).Error("Failed to send anchor failure notice")
		}
	}(email)
}
