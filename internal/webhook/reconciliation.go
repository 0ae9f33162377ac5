package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/claim-workflow/internal/audit"
	"github.com/kursadbilgin/claim-workflow/internal/domain"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	defaultRetryCount     = 2
)

var _ audit.Sink = (*ReconciliationSink)(nil)

type reconciliationRequest struct {
	AttemptID      string    `json:"attemptId"`
	CorrelationID  string    `json:"correlationId,omitempty"`
	ClaimID        string    `json:"claimId"`
	TransactionRef string    `json:"transactionRef"`
	ExecutedBy     string    `json:"executedBy"`
	ExecutedAt     time.Time `json:"executedAt"`
}

// ReconciliationSink notifies the finance system of every executed payment.
// Other attempts are ignored.
type ReconciliationSink struct {
	client   *resty.Client
	endpoint string
}

func NewReconciliationSink(endpoint string) (*ReconciliationSink, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)

	return NewReconciliationSinkWithClient(endpoint, client)
}

func NewReconciliationSinkWithClient(endpoint string, client *resty.Client) (*ReconciliationSink, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(50 * time.Millisecond).
		SetRetryMaxWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && isTransientHTTPStatus(r.StatusCode())
		})

	return &ReconciliationSink{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (s *ReconciliationSink) Name() string {
	return "reconciliation-webhook"
}

func (s *ReconciliationSink) Write(ctx context.Context, attempt domain.TransitionAttempt) error {
	if attempt.Outcome != domain.OutcomeAccepted || attempt.Action != domain.TransitionExecutePayment.String() {
		return nil
	}
	if s == nil || s.client == nil {
		return fmt.Errorf("reconciliation sink is not initialized")
	}

	reqBody := reconciliationRequest{
		AttemptID:      attempt.ID,
		CorrelationID:  attempt.CorrelationID,
		ClaimID:        attempt.ClaimID,
		TransactionRef: attempt.Detail,
		ExecutedBy:     attempt.ActorID,
		ExecutedAt:     attempt.OccurredAt,
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Idempotency-Key", attempt.ID).
		SetBody(reqBody).
		Post(s.endpoint)
	if err != nil {
		return &DeliveryError{
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &DeliveryError{
			Message:   "webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &DeliveryError{
		StatusCode: statusCode,
		Message:    deliveryErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func deliveryErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
