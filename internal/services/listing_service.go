package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vitrine/backend/internal/db"
	"vitrine/backend/internal/models"
	"vitrine/backend/internal/utils"
)

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, sellerID utils.SixID, title, body string, tags []string, askingPrice *models.AskingPrice) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	UpdateListing(ctx context.Context, listingID utils.SixID, req Requester, updates map[string]interface{}) (*models.Listing, error)
	DeactivateListing(ctx context.Context, listingID utils.SixID, req Requester) error
	ReactivateListing(ctx context.Context, listingID utils.SixID, req Requester) error
	ArchiveListing(ctx context.Context, listingID utils.SixID, req Requester) error
	GetListingStatus(ctx context.Context, listingID utils.SixID) (models.ListingStatus, bool, error)
	FindListingsBySellerID(ctx context.Context, sellerID utils.SixID) ([]models.Listing, error)
	AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error
	// Lifecycle transitions driven by the payment manager, not by callers.
	BeginActivation(ctx context.Context, listingID utils.SixID) error
	PublishListing(ctx context.Context, listingID utils.SixID) error
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db    *mongo.Database
	guard IListingAccessGuard
}

// NewListingService creates a new ListingService.
func NewListingService(database *mongo.Database, guard IListingAccessGuard) IListingService {
	return &listingService{db: database, guard: guard}
}

// CreateListing creates a new listing document in draft status.
func (s *listingService) CreateListing(ctx context.Context, sellerID utils.SixID, title, body string, tags []string, askingPrice *models.AskingPrice) (*models.Listing, error) {
	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()

	if tags == nil {
		tags = []string{}
	}
	newListing := &models.Listing{
		SellerID:    sellerID,
		Title:       title,
		Body:        body,
		Tags:        tags,
		Images:      []string{},
		AskingPrice: askingPrice,
		Status:      models.ListingStatusDraft,
		Active:      false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	operation := func() error {
		newListing.ID = utils.NewSixID()
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert new listing for seller %s after multiple retries: %w", sellerID.String(), err)
	}

	return newListing, nil
}

// FindListingByID finds a listing by its ID, archived ones included.
// It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	collection := s.db.Collection(listingsCollection)

	err := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

// UpdateListing updates content fields of a listing after consulting the
// access guard. Status, active and ownership are never updatable here; the
// dedicated lifecycle methods own those. The update is conditioned on the
// status/active pair the guard decision was made against, so a concurrent
// lifecycle transition surfaces as ErrConflict rather than slipping through.
func (s *listingService) UpdateListing(ctx context.Context, listingID utils.SixID, req Requester, updates map[string]interface{}) (*models.Listing, error) {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeEdit(listing, req); err != nil {
		return nil, err
	}

	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "body", "tags", "asking_price", "is_donation", "expires_at":
			allowedUpdates[key] = value
		default:
			return nil, fmt.Errorf("field '%s' cannot be updated via UpdateListing: %w", key, ErrInvalidState)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("no valid fields provided for update: %w", ErrInvalidState)
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{
		"_id":    listingID,
		"status": listing.Status,
		"active": listing.Active,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updatedListing models.Listing
	err = s.db.Collection(listingsCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": allowedUpdates}, opts).Decode(&updatedListing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Guard passed against a snapshot that has since moved on.
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID.String(), err)
	}

	return &updatedListing, nil
}

// DeactivateListing takes a published listing off display. Only the active
// flag changes; the paid-for published status and any payment are untouched.
func (s *listingService) DeactivateListing(ctx context.Context, listingID utils.SixID, req Requester) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if err := s.guard.AuthorizeDeactivate(listing, req); err != nil {
		return err
	}
	filter := bson.M{
		"_id":    listingID,
		"status": models.ListingStatusPublished,
		"active": true,
	}
	update := bson.M{"$set": bson.M{
		"active":     false,
		"updated_at": time.Now().UTC(),
	}}
	return s.applyConditionalUpdate(ctx, listingID, filter, update)
}

// ReactivateListing puts a deactivated published listing back on display.
func (s *listingService) ReactivateListing(ctx context.Context, listingID utils.SixID, req Requester) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if err := s.guard.AuthorizeReactivate(listing, req); err != nil {
		return err
	}
	filter := bson.M{
		"_id":    listingID,
		"status": models.ListingStatusPublished,
		"active": false,
	}
	update := bson.M{"$set": bson.M{
		"active":     true,
		"updated_at": time.Now().UTC(),
	}}
	return s.applyConditionalUpdate(ctx, listingID, filter, update)
}

// ArchiveListing is a soft delete: the record transitions to archived and is
// retained. There is no unarchive.
func (s *listingService) ArchiveListing(ctx context.Context, listingID utils.SixID, req Requester) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if err := s.guard.AuthorizeDelete(listing, req); err != nil {
		return err
	}
	now := time.Now().UTC()
	filter := bson.M{
		"_id":    listingID,
		"status": bson.M{"$ne": models.ListingStatusArchived},
	}
	update := bson.M{"$set": bson.M{
		"status":      models.ListingStatusArchived,
		"active":      false,
		"archived_at": now,
		"updated_at":  now,
	}}
	return s.applyConditionalUpdate(ctx, listingID, filter, update)
}

// GetListingStatus returns the listing's status and active flag.
func (s *listingService) GetListingStatus(ctx context.Context, listingID utils.SixID) (models.ListingStatus, bool, error) {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return "", false, err
	}
	return listing.Status, listing.Active, nil
}

// FindListingsBySellerID returns all non-archived listings for a seller,
// newest first.
func (s *listingService) FindListingsBySellerID(ctx context.Context, sellerID utils.SixID) ([]models.Listing, error) {
	coll := s.db.Collection(listingsCollection)
	filter := bson.M{
		"seller_id": sellerID,
		"status":    bson.M{"$ne": models.ListingStatusArchived},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find listings for seller %s: %w", sellerID.String(), err)
	}
	defer cursor.Close(ctx)
	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// AddImageToListing adds a processed image key to a listing's image array.
// It should only be called after the image processing task is complete.
func (s *listingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	collection := s.db.Collection(listingsCollection)

	filter := bson.M{
		"_id":    listingID,
		"status": bson.M{"$ne": models.ListingStatusArchived},
	}
	update := bson.M{
		"$addToSet": bson.M{"images": imageKey},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error adding image %s to listing %s: %w", imageKey, listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("listing %s: %w", listingID.String(), ErrNotFound)
	}
	return nil
}

// BeginActivation moves a draft listing into awaiting_payment. Called by the
// payment manager when an activation payment is created; a listing already
// awaiting payment (e.g. its previous payment expired) passes through
// unchanged.
func (s *listingService) BeginActivation(ctx context.Context, listingID utils.SixID) error {
	filter := bson.M{
		"_id": listingID,
		"status": bson.M{"$in": []models.ListingStatus{
			models.ListingStatusDraft,
			models.ListingStatusAwaitingPayment,
		}},
	}
	update := bson.M{"$set": bson.M{
		"status":     models.ListingStatusAwaitingPayment,
		"updated_at": time.Now().UTC(),
	}}
	return s.applyConditionalUpdate(ctx, listingID, filter, update)
}

// PublishListing flips an awaiting_payment listing to published and active.
// Called by the payment manager on approval; never by API handlers directly.
func (s *listingService) PublishListing(ctx context.Context, listingID utils.SixID) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":    listingID,
		"status": models.ListingStatusAwaitingPayment,
	}
	update := bson.M{"$set": bson.M{
		"status":       models.ListingStatusPublished,
		"active":       true,
		"published_at": now,
		"updated_at":   now,
	}}
	return s.applyConditionalUpdate(ctx, listingID, filter, update)
}

// applyConditionalUpdate runs a guarded UpdateOne and, when nothing matched,
// re-fetches the record to report which precondition failed.
func (s *listingService) applyConditionalUpdate(ctx context.Context, listingID utils.SixID, filter, update bson.M) error {
	collection := s.db.Collection(listingsCollection)
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error updating listing %s: %w", listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		checkErr := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return fmt.Errorf("listing %s: %w", listingID.String(), ErrNotFound)
		}
		if checkErr != nil {
			return fmt.Errorf("failed to re-fetch listing %s: %w", listingID.String(), checkErr)
		}
		return fmt.Errorf("listing %s is %s: %w", listingID.String(), listing.Status, ErrInvalidState)
	}
	return nil
}
