package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/roster/pkg/logger"
)

// Mailer sends the transactional emails of the application
type Mailer interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendVerification(ctx context.Context, to, token string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, to, token string, expiresAt time.Time) error
	SendAlert(ctx context.Context, to []string, subject, body string) error
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends emails using AWS SES
type SESMailer struct {
	client      sesAPI
	fromAddress string
	appURL      string
	logger      *slog.Logger
}

func NewSESMailer(ctx context.Context, region, fromAddress, appURL string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESMailer(ses.NewFromConfig(cfg), fromAddress, appURL, logger), nil
}

func newSESMailer(client sesAPI, fromAddress, appURL string, logger *slog.Logger) *SESMailer {
	return &SESMailer{
		client:      client,
		fromAddress: fromAddress,
		appURL:      appURL,
		logger:      logger,
	}
}

func (m *SESMailer) SendWelcome(ctx context.Context, to, name string) error {
	text := fmt.Sprintf("Hello %s,\n\nWelcome aboard! Your account has been created.\n", name)
	return m.send(ctx, []string{to}, "Welcome", paragraphs(text), text)
}

func (m *SESMailer) SendVerification(ctx context.Context, to, token string, expiresAt time.Time) error {
	link := m.link("/verify-email", token)
	text := fmt.Sprintf(`Verify Your Email Address

Please confirm your email address by opening the link below:

%s

This link expires at %s. If you did not create an account, no further action is required.
`, link, expiresAt.UTC().Format(time.RFC1123))

	return m.send(ctx, []string{to}, "Verify your email address", paragraphs(text), text)
}

func (m *SESMailer) SendPasswordReset(ctx context.Context, to, token string, expiresAt time.Time) error {
	link := m.link("/reset-password", token)
	text := fmt.Sprintf(`Reset Your Password

You are receiving this email because we received a password reset request for your account:

%s

This link expires at %s. If you did not request a password reset, no further action is required.
`, link, expiresAt.UTC().Format(time.RFC1123))

	return m.send(ctx, []string{to}, "Reset your password", paragraphs(text), text)
}

func (m *SESMailer) SendAlert(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	return m.send(ctx, to, "[System Alert] "+subject, paragraphs(body), body)
}

func (m *SESMailer) link(path, token string) string {
	return m.appURL + path + "?token=" + url.QueryEscape(token)
}

func (m *SESMailer) send(ctx context.Context, to []string, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.logger.Error("failed to send email via SES",
			slog.String("subject", subject),
			slog.Int("recipients", len(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("email sent",
		slog.String("subject", subject),
		slog.Int("recipients", len(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// paragraphs wraps escaped plain text in a minimal HTML document
func paragraphs(text string) string {
	return `<!DOCTYPE html><html><body style="font-family: Arial, sans-serif; line-height: 1.6;"><pre style="font-family: inherit; white-space: pre-wrap;">` +
		html.EscapeString(text) + `</pre></body></html>`
}

// LogMailer stands in for SES when email delivery is disabled. Tokens are
// never written to the log.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendWelcome(_ context.Context, to, _ string) error {
	m.logger.Info("email disabled, skipping welcome mail", slog.String("to", pkglogger.SanitizedEmail(to)))
	return nil
}

func (m *LogMailer) SendVerification(_ context.Context, to, _ string, _ time.Time) error {
	m.logger.Info("email disabled, skipping verification mail", slog.String("to", pkglogger.SanitizedEmail(to)))
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, _ string, _ time.Time) error {
	m.logger.Info("email disabled, skipping password reset mail", slog.String("to", pkglogger.SanitizedEmail(to)))
	return nil
}

func (m *LogMailer) SendAlert(_ context.Context, to []string, subject, _ string) error {
	m.logger.Info("email disabled, skipping alert mail", slog.String("subject", subject), slog.Int("recipients", len(to)))
	return nil
}
