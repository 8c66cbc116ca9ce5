package services

import (
	"vitrine/backend/internal/models"
	"vitrine/backend/internal/utils"
)

// Requester identifies who is performing an operation, as resolved by the
// auth middleware.
type Requester struct {
	UserID  utils.SixID
	IsAdmin bool
}

// IListingAccessGuard answers "may this requester mutate this listing right
// now". Every mutating listing entry point consults it. Pure reads over the
// listing record, no persistence of its own.
type IListingAccessGuard interface {
	AuthorizeEdit(listing *models.Listing, req Requester) error
	AuthorizeDeactivate(listing *models.Listing, req Requester) error
	AuthorizeReactivate(listing *models.Listing, req Requester) error
	AuthorizeDelete(listing *models.Listing, req Requester) error
	CanEdit(listing *models.Listing, req Requester) bool
	CanDeactivate(listing *models.Listing, req Requester) bool
	CanReactivate(listing *models.Listing, req Requester) bool
	CanDelete(listing *models.Listing, req Requester) bool
}

type listingAccessGuard struct{}

// NewListingAccessGuard creates a new ListingAccessGuard.
func NewListingAccessGuard() IListingAccessGuard {
	return &listingAccessGuard{}
}

func (g *listingAccessGuard) owner(listing *models.Listing, req Requester) error {
	if req.IsAdmin || listing.SellerID == req.UserID {
		return nil
	}
	return ErrNotOwner
}

// AuthorizeEdit permits content edits while the listing is not archived and
// not sitting in the deactivated-published state. A published listing that
// has been deactivated must be reactivated before its content can change.
func (g *listingAccessGuard) AuthorizeEdit(listing *models.Listing, req Requester) error {
	if err := g.owner(listing, req); err != nil {
		return err
	}
	if listing.Status == models.ListingStatusArchived {
		return ErrInvalidState
	}
	if listing.Status == models.ListingStatusPublished && !listing.Active {
		return ErrInvalidState
	}
	return nil
}

// AuthorizeDeactivate permits flipping active off on a published, currently
// active listing. Deactivation never touches status or any payment.
func (g *listingAccessGuard) AuthorizeDeactivate(listing *models.Listing, req Requester) error {
	if err := g.owner(listing, req); err != nil {
		return err
	}
	if listing.Status != models.ListingStatusPublished || !listing.Active {
		return ErrInvalidState
	}
	return nil
}

// AuthorizeReactivate permits flipping active back on for a published,
// currently inactive listing. No payment side effect.
func (g *listingAccessGuard) AuthorizeReactivate(listing *models.Listing, req Requester) error {
	if err := g.owner(listing, req); err != nil {
		return err
	}
	if listing.Status != models.ListingStatusPublished || listing.Active {
		return ErrInvalidState
	}
	return nil
}

// AuthorizeDelete permits archiving from any prior status. Archiving is
// irreversible from the caller's perspective.
func (g *listingAccessGuard) AuthorizeDelete(listing *models.Listing, req Requester) error {
	if err := g.owner(listing, req); err != nil {
		return err
	}
	if listing.Status == models.ListingStatusArchived {
		return ErrInvalidState
	}
	return nil
}

func (g *listingAccessGuard) CanEdit(listing *models.Listing, req Requester) bool {
	return g.AuthorizeEdit(listing, req) == nil
}

func (g *listingAccessGuard) CanDeactivate(listing *models.Listing, req Requester) bool {
	return g.AuthorizeDeactivate(listing, req) == nil
}

func (g *listingAccessGuard) CanReactivate(listing *models.Listing, req Requester) bool {
	return g.AuthorizeReactivate(listing, req) == nil
}

func (g *listingAccessGuard) CanDelete(listing *models.Listing, req Requester) bool {
	return g.AuthorizeDelete(listing, req) == nil
}
