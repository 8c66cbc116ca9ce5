// Package events dispatches payment lifecycle notifications over NATS.
// Emission is fire-and-forget: a failed publish is logged and never fails
// the transition that triggered it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for the lifecycle events.
const (
	SubjectPaymentCreated  = "payments.created"
	SubjectProofSubmitted  = "payments.proof_submitted"
	SubjectPaymentApproved = "payments.approved"
	SubjectPaymentRejected = "payments.rejected"
	SubjectPaymentExpired  = "payments.expired"
)

// PaymentEvent is the wire payload for every payment lifecycle subject.
type PaymentEvent struct {
	PaymentID  string    `json:"payment_id"`
	ListingID  string    `json:"listing_id"`
	SellerID   string    `json:"seller_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// IPublisher publishes lifecycle events.
type IPublisher interface {
	Publish(ctx context.Context, subject string, event PaymentEvent) error
	Close()
}

// NATSPublisher publishes events to a NATS server.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, event PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for subject %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// LogPublisher is used when no NATS URL is configured; events are logged and
// dropped so the lifecycle keeps working in minimal deployments.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, subject string, event PaymentEvent) error {
	log.Printf("[event] %s payment=%s listing=%s status=%s", subject, event.PaymentID, event.ListingID, event.Status)
	return nil
}

func (p *LogPublisher) Close() {}
