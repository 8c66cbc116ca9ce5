package models

import (
	"time"

	"vitrine/backend/internal/utils"
)

// PaymentStatus is the lifecycle state of an activation payment.
type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "pending"
	PaymentStatusProofSubmitted PaymentStatus = "proof_submitted"
	PaymentStatusApproved       PaymentStatus = "approved"
	PaymentStatusRejected       PaymentStatus = "rejected"
	PaymentStatusExpired        PaymentStatus = "expired"
	PaymentStatusCancelled      PaymentStatus = "cancelled"
)

// LivePaymentStatuses are the statuses in which a payment still occupies its
// listing's activation slot. At most one payment per listing may be in any of
// these states at a time; a partial unique index on payments.listing_id
// enforces it.
var LivePaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProofSubmitted,
}

// Payment represents one activation attempt for a listing. Amount, currency
// and the expiry window are stamped at creation and never change afterwards.
type Payment struct {
	Base             `bson:",inline"`
	ListingID        utils.SixID   `bson:"listing_id" json:"listing_id"`
	SellerID         utils.SixID   `bson:"seller_id" json:"seller_id"`
	Amount           float64       `bson:"amount" json:"amount"`
	CurrencyCode     string        `bson:"currency_code" json:"currency_code"`
	PaymentReference string        `bson:"payment_reference,omitempty" json:"payment_reference,omitempty"`
	Status           PaymentStatus `bson:"status" json:"status"`
	ProofRef         string        `bson:"proof_ref,omitempty" json:"proof_ref,omitempty"`
	ProofSubmittedAt *time.Time    `bson:"proof_submitted_at,omitempty" json:"proof_submitted_at,omitempty"`
	ReviewerID       *utils.SixID  `bson:"reviewer_id,omitempty" json:"reviewer_id,omitempty"`
	ReviewedAt       *time.Time    `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	ReviewNote       string        `bson:"review_note,omitempty" json:"review_note,omitempty"`
	CreatedAt        time.Time     `bson:"created_at" json:"created_at"`
	ExpiresAt        time.Time     `bson:"expires_at" json:"expires_at"`
}

// Live reports whether the payment still occupies the listing's activation
// slot (see LivePaymentStatuses).
func (p *Payment) Live() bool {
	switch p.Status {
	case PaymentStatusPending, PaymentStatusProofSubmitted:
		return true
	}
	return false
}

// ProofAccepted reports whether the payment is in a status that accepts a
// (re)submitted proof. Rejected payments may be retried while the original
// window is still open.
func (p *Payment) ProofAccepted() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusRejected
}

// WindowExpired reports whether the payment's submission window has lapsed.
func (p *Payment) WindowExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// EffectiveStatus returns the status readers should act on: a live payment
// past its window reads as expired even before the sweep task has claimed it.
// Only the sweep actually writes the expired status.
func (p *Payment) EffectiveStatus(now time.Time) PaymentStatus {
	if p.Live() && p.WindowExpired(now) {
		return PaymentStatusExpired
	}
	return p.Status
}
