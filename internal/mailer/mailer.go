// Package mailer delivers transactional email through the Resend HTTP API.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Sender sends one HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// ResendClient is a Sender backed by https://resend.com.
type ResendClient struct {
	httpClient *resty.Client
	from       string
	logger     *zap.Logger
}

// NewResendClient creates a Resend client.
func NewResendClient(baseURL, apiKey, from string, logger *zap.Logger) *ResendClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ResendClient{
		httpClient: client,
		from:       from,
		logger:     logger,
	}
}

// Send posts the message to /emails.
func (c *ResendClient) Send(ctx context.Context, to, subject, html string) error {
	var (
		result  resendResponse
		failure resendError
	)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(resendRequest{From: c.from, To: []string{to}, Subject: subject, HTML: html}).
		SetResult(&result).
		SetError(&failure).
		Post("/emails")
	if err != nil {
		c.logger.Error("Resend API call failed", zap.Error(err))
		return fmt.Errorf("failed to call Resend API: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("Resend API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("name", failure.Name),
			zap.String("msg", failure.Message),
		)
		return fmt.Errorf("resend API error: %s (status: %d)", failure.Message, resp.StatusCode())
	}

	c.logger.Info("email sent", zap.String("id", result.ID))
	return nil
}

// LogSender writes emails to the log instead of sending them. Used when no
// Resend API key is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (l LogSender) Send(_ context.Context, to, subject, _ string) error {
	l.Logger.Warn("email delivery disabled, message not sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
