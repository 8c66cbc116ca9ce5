package models

import (
	"time"

	"vitrine/backend/internal/utils"
)

// TeamMember is an embedded contact entry within a sales team. Member order
// is insertion order and is preserved by every read path.
type TeamMember struct {
	ID        utils.SixID `bson:"_id" json:"id"`
	UserID    utils.SixID `bson:"user_id" json:"user_id"`
	Name      string      `bson:"name" json:"name"`
	Phone     string      `bson:"phone,omitempty" json:"phone,omitempty"`
	Available bool        `bson:"available" json:"available"`
	AddedAt   time.Time   `bson:"added_at" json:"added_at"`
}

// SalesTeam groups the contacts a buyer may be routed to for a seller's
// listings.
type SalesTeam struct {
	Base      `bson:",inline"`
	SellerID  utils.SixID  `bson:"seller_id" json:"seller_id"`
	Name      string       `bson:"name" json:"name"`
	Members   []TeamMember `bson:"members" json:"members"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updated_at"`
	Deleted   bool         `bson:"deleted" json:"-"`
}

// AvailableMembers returns the members currently marked available, in
// insertion order.
func (t *SalesTeam) AvailableMembers() []TeamMember {
	out := make([]TeamMember, 0, len(t.Members))
	for _, m := range t.Members {
		if m.Available {
			out = append(out, m)
		}
	}
	return out
}
