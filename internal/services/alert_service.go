package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/BradenHooton/roster/internal/models"
)

// AlertRecipientRepository finds the users who receive system alerts
type AlertRecipientRepository interface {
	ListWithPermission(ctx context.Context, permission string) ([]models.User, error)
}

// Notifier delivers a short text message to a chat channel
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type slackMessage struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// SlackNotifier posts to a Slack incoming webhook
type SlackNotifier struct {
	client     *resty.Client
	webhookURL string
	channel    string
}

func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	client := resty.New()
	client.SetTimeout(5 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetHeader("Content-Type", "application/json")

	return &SlackNotifier{
		client:     client,
		webhookURL: webhookURL,
		channel:    channel,
	}
}

func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(slackMessage{Text: text, Channel: n.channel}).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("slack webhook request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// AlertService fans a system alert out to Slack and to every user
// holding receive_system_alerts.
type AlertService struct {
	recipients AlertRecipientRepository
	mailer     Mailer
	notifier   Notifier
	logger     *slog.Logger
}

// NewAlertService accepts a nil notifier when Slack is not configured
func NewAlertService(recipients AlertRecipientRepository, mailer Mailer, notifier Notifier, logger *slog.Logger) *AlertService {
	return &AlertService{
		recipients: recipients,
		mailer:     mailer,
		notifier:   notifier,
		logger:     logger,
	}
}

func (s *AlertService) Alert(ctx context.Context, subject, body string) error {
	var errs []error

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, fmt.Sprintf("*%s*\n%s", subject, body)); err != nil {
			s.logger.Error("failed to send slack alert", slog.String("subject", subject), slog.Any("error", err))
			errs = append(errs, err)
		}
	}

	users, err := s.recipients.ListWithPermission(ctx, models.PermissionReceiveSystemAlerts)
	if err != nil {
		s.logger.Error("failed to load alert recipients", slog.Any("error", err))
		return errors.Join(append(errs, err)...)
	}

	to := make([]string, 0, len(users))
	for _, u := range users {
		to = append(to, u.Email)
	}
	if err := s.mailer.SendAlert(ctx, to, subject, body); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
