package models

import (
	"time"

	"vitrine/backend/internal/utils"
)

// ListingStatus is the publication state of a listing. Visibility toggling is
// tracked separately via Listing.Active so that a published listing can be
// taken off display without losing its paid-for status.
type ListingStatus string

const (
	ListingStatusDraft           ListingStatus = "draft"
	ListingStatusAwaitingPayment ListingStatus = "awaiting_payment"
	ListingStatusPublished       ListingStatus = "published"
	ListingStatusArchived        ListingStatus = "archived"
)

// AskingPrice defines the structure for monetary values.
type AskingPrice struct {
	Value        float64 `bson:"value" json:"value"`
	CurrencyCode string  `bson:"currency_code" json:"currency_code"`
}

// Listing represents a seller's classified listing.
type Listing struct {
	ID          utils.SixID   `bson:"_id,omitempty" json:"id,omitempty"`
	SellerID    utils.SixID   `bson:"seller_id" json:"seller_id"`
	Title       string        `bson:"title" json:"title"`
	Body        string        `bson:"body" json:"body"`
	Tags        []string      `bson:"tags" json:"tags"`
	Images      []string      `bson:"images" json:"images"` // S3 keys
	AskingPrice *AskingPrice  `bson:"asking_price,omitempty" json:"asking_price,omitempty"`
	IsDonation  bool          `bson:"is_donation" json:"is_donation"`
	Status      ListingStatus `bson:"status" json:"status"`
	Active      bool          `bson:"active" json:"active"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updated_at"`
	PublishedAt *time.Time    `bson:"published_at,omitempty" json:"published_at,omitempty"`
	// ExpiresAt is the content's own display deadline, unrelated to any
	// payment window.
	ExpiresAt  *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	ArchivedAt *time.Time `bson:"archived_at,omitempty" json:"archived_at,omitempty"`
}

// Visible reports whether the listing should currently appear to buyers.
func (l *Listing) Visible() bool {
	if l.ExpiresAt != nil && !time.Now().Before(*l.ExpiresAt) {
		return false
	}
	return l.Status == ListingStatusPublished && l.Active
}
