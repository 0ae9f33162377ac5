package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/claim-workflow/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakePublisher struct {
	publishFn func(ctx context.Context, queue string, msg ActivityMessage) error
}

func (p *fakePublisher) Publish(ctx context.Context, queue string, msg ActivityMessage) error {
	return p.publishFn(ctx, queue, msg)
}

func (p *fakePublisher) Close() error { return nil }

func testAttempt() domain.TransitionAttempt {
	return domain.TransitionAttempt{
		ID:                "att-1",
		CorrelationID:     "cid-1",
		ClaimID:           "claim-1",
		Action:            "execute_payment",
		ActorID:           "admin-1",
		ActorRole:         domain.RoleSentinelAdmin,
		Outcome:           domain.OutcomeAccepted,
		Detail:            "TXN123",
		FromStatus:        domain.StatusCompleted,
		ToStatus:          domain.StatusCompleted,
		FromPaymentStatus: domain.PaymentAuthorized,
		ToPaymentStatus:   domain.PaymentPaid,
		OccurredAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestQueueNames(t *testing.T) {
	if ActivityQueue != "claims.activity" {
		t.Fatalf("ActivityQueue = %s, want claims.activity", ActivityQueue)
	}
	if got := DLQName(ActivityQueue); got != "dlq.claims.activity" {
		t.Fatalf("DLQName = %s, want dlq.claims.activity", got)
	}
}

func TestActivityMessageValidate(t *testing.T) {
	msg := NewActivityMessage(testAttempt())
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.AttemptID = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty attempt id")
	}

	msg.AttemptID = "att-1"
	msg.Outcome = domain.Outcome("maybe")
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for invalid outcome")
	}

	msg.Outcome = domain.OutcomeDenied
	msg.OccurredAt = time.Time{}
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for missing occurredAt")
	}
}

func TestActivityMessageAttemptRoundTrip(t *testing.T) {
	want := testAttempt()
	got := NewActivityMessage(want).Attempt()
	if got != want {
		t.Fatalf("Attempt() = %+v, want %+v", got, want)
	}
}

func TestActivitySinkPublishesToActivityQueue(t *testing.T) {
	var gotQueue string
	var gotMsg ActivityMessage
	sink := NewActivitySink(&fakePublisher{publishFn: func(_ context.Context, queue string, msg ActivityMessage) error {
		gotQueue = queue
		gotMsg = msg
		return nil
	}})

	if err := sink.Write(context.Background(), testAttempt()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if gotQueue != ActivityQueue {
		t.Fatalf("queue = %s, want %s", gotQueue, ActivityQueue)
	}
	if gotMsg.AttemptID != "att-1" || gotMsg.Detail != "TXN123" {
		t.Fatalf("message = %+v", gotMsg)
	}
}

func TestActivitySinkPropagatesPublishError(t *testing.T) {
	publishErr := errors.New("channel closed")
	sink := NewActivitySink(&fakePublisher{publishFn: func(context.Context, string, ActivityMessage) error {
		return publishErr
	}})

	if err := sink.Write(context.Background(), testAttempt()); !errors.Is(err, publishErr) {
		t.Fatalf("Write() error = %v, want %v", err, publishErr)
	}

	var nilSink *ActivitySink
	if err := nilSink.Write(context.Background(), testAttempt()); err == nil {
		t.Fatal("expected error for uninitialized sink")
	}
}

func TestDecodeDelivery(t *testing.T) {
	t.Parallel()

	valid, err := json.Marshal(NewActivityMessage(testAttempt()))
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	invalid := NewActivityMessage(testAttempt())
	invalid.Action = ""
	missingAction, err := json.Marshal(invalid)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	testCases := []struct {
		name    string
		body    []byte
		wantErr bool
	}{
		{name: "valid", body: valid},
		{name: "not json", body: []byte("{"), wantErr: true},
		{name: "fails validation", body: missingAction, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg, err := decodeDelivery(amqp.Delivery{Body: tc.body})
			if tc.wantErr {
				if err == nil {
					t.Fatal("decodeDelivery() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeDelivery() error = %v", err)
			}
			if msg.AttemptID != "att-1" || msg.Outcome != domain.OutcomeAccepted {
				t.Fatalf("decodeDelivery() = %+v", msg)
			}
		})
	}
}

func TestNewActivityPublishing(t *testing.T) {
	t.Parallel()

	msg := NewActivityMessage(testAttempt())
	msg.NoOp = true

	publishing, err := newActivityPublishing(msg)
	if err != nil {
		t.Fatalf("newActivityPublishing() error = %v", err)
	}

	if publishing.DeliveryMode != amqp.Persistent {
		t.Fatalf("delivery mode = %d, want persistent", publishing.DeliveryMode)
	}
	if publishing.MessageId != "att-1" || publishing.CorrelationId != "cid-1" || publishing.Type != "execute_payment" {
		t.Fatalf("properties = %s/%s/%s", publishing.MessageId, publishing.CorrelationId, publishing.Type)
	}
	if !publishing.Timestamp.Equal(msg.OccurredAt) {
		t.Fatalf("timestamp = %v, want %v", publishing.Timestamp, msg.OccurredAt)
	}

	wantHeaders := amqp.Table{
		"x-claim-id":   "claim-1",
		"x-outcome":    "accepted",
		"x-actor-role": "samsung-sentinel-admin",
		"x-no-op":      "true",
	}
	for key, want := range wantHeaders {
		if got := publishing.Headers[key]; got != want {
			t.Fatalf("header %s = %v, want %v", key, got, want)
		}
	}

	decoded, err := decodeDelivery(amqp.Delivery{Body: publishing.Body})
	if err != nil {
		t.Fatalf("decodeDelivery() error = %v", err)
	}
	if decoded.AttemptID != msg.AttemptID || !decoded.NoOp || !decoded.OccurredAt.Equal(msg.OccurredAt) {
		t.Fatalf("decoded = %+v, want %+v", decoded, msg)
	}

	msg.Outcome = domain.Outcome("maybe")
	if _, err := newActivityPublishing(msg); err == nil {
		t.Fatal("expected error for invalid outcome")
	}
}

func TestRabbitMQPublisherRequiresClient(t *testing.T) {
	t.Parallel()

	var nilPublisher *RabbitMQPublisher
	if err := nilPublisher.Publish(context.Background(), ActivityQueue, NewActivityMessage(testAttempt())); err == nil {
		t.Fatal("expected error for uninitialized publisher")
	}
	if err := NewRabbitMQPublisher(&RabbitMQ{}).Publish(context.Background(), "", NewActivityMessage(testAttempt())); err == nil {
		t.Fatal("expected error for empty queue name")
	}
}
