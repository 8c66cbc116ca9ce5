package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vitrine/backend/internal/config"
	"vitrine/backend/internal/db"
	"vitrine/backend/internal/events"
	"vitrine/backend/internal/models"
	"vitrine/backend/internal/payments"
	"vitrine/backend/internal/utils"
)

// IPaymentService manages the activation payment lifecycle: it creates
// payments, accepts proof submissions, applies moderation decisions, expires
// stale windows and drives the listing status transitions that follow.
type IPaymentService interface {
	RequestActivation(ctx context.Context, listingID utils.SixID, req Requester) (*models.Payment, error)
	SubmitProof(ctx context.Context, paymentID utils.SixID, req Requester, proofRef string) (*models.Payment, error)
	Review(ctx context.Context, paymentID utils.SixID, reviewer Requester, approve bool, note string) (*models.Payment, error)
	Cancel(ctx context.Context, paymentID utils.SixID, req Requester) (*models.Payment, error)
	SweepExpired(ctx context.Context) ([]models.Payment, error)
	FindPaymentByID(ctx context.Context, paymentID utils.SixID) (*models.Payment, error)
	GetPaymentStatus(ctx context.Context, listingID utils.SixID) (*models.Payment, error)
	FindLivePayment(ctx context.Context, listingID utils.SixID) (*models.Payment, error)
}

const paymentsCollection = "payments"

type paymentService struct {
	db             *mongo.Database
	cfg            *config.Config
	configService  IConfigService
	listingService IListingService
	gateway        payments.IPaymentGateway
	publisher      events.IPublisher
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	database *mongo.Database,
	cfg *config.Config,
	configService IConfigService,
	listingService IListingService,
	gateway payments.IPaymentGateway,
	publisher events.IPublisher,
) IPaymentService {
	return &paymentService{
		db:             database,
		cfg:            cfg,
		configService:  configService,
		listingService: listingService,
		gateway:        gateway,
		publisher:      publisher,
	}
}

// RequestActivation creates a pending activation payment for a listing and
// moves the listing into awaiting_payment. Idempotent with respect to an
// already-live payment: the existing one is returned instead of a duplicate.
// The fee and TTL are read from configuration once, here, and stamped onto
// the payment; later configuration changes never touch existing payments.
func (s *paymentService) RequestActivation(ctx context.Context, listingID utils.SixID, req Requester) (*models.Payment, error) {
	listing, err := s.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !req.IsAdmin && listing.SellerID != req.UserID {
		return nil, ErrNotOwner
	}
	switch listing.Status {
	case models.ListingStatusDraft, models.ListingStatusAwaitingPayment:
		// Eligible.
	default:
		return nil, fmt.Errorf("listing %s is %s: %w", listingID.String(), listing.Status, ErrInvalidState)
	}

	now := time.Now().UTC()

	// Reuse a still-live payment; release a stale one past its window so the
	// partial index frees the slot for the replacement.
	existing, err := s.FindLivePayment(ctx, listingID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if !existing.WindowExpired(now) {
			return existing, nil
		}
		if err := s.expireOne(ctx, existing, now); err != nil {
			return nil, err
		}
	}

	amount := s.configService.GetFloat64(ctx, "ACTIVATION_FEE", s.cfg.ActivationFee)
	currency := s.cfg.ActivationFeeCurrency
	ttl := s.configService.GetDuration(ctx, "PAYMENT_TTL_SECONDS", s.cfg.PaymentTTL)

	reference, gwErr := s.gateway.CreatePaymentReference(ctx, amount, currency, fmt.Sprintf("Listing activation %s", listingID.String()))
	if gwErr != nil {
		// Fire-and-forget: the reference is a convenience for the payer, not
		// a precondition for any later transition.
		log.Printf("WARN: payment gateway failed for listing %s: %v", listingID.String(), gwErr)
		reference = ""
	}

	newPayment := &models.Payment{
		ListingID:        listingID,
		SellerID:         listing.SellerID,
		Amount:           amount,
		CurrencyCode:     currency,
		PaymentReference: reference,
		Status:           models.PaymentStatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}

	err = db.InsertOne(ctx, s.db.Collection(paymentsCollection), newPayment)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			// Lost the creation race: another request inserted the live
			// payment first. Return the winner.
			winner, findErr := s.FindLivePayment(ctx, listingID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to fetch winning payment for listing %s: %w", listingID.String(), findErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to insert payment for listing %s: %w", listingID.String(), err)
	}

	if err := s.listingService.BeginActivation(ctx, listingID); err != nil {
		log.Printf("WARN: payment %s created but listing %s transition failed: %v", newPayment.ID.String(), listingID.String(), err)
	}

	s.emit(ctx, events.SubjectPaymentCreated, newPayment)
	return newPayment, nil
}

// SubmitProof attaches (or replaces, after a rejection) the proof reference
// and moves the payment to proof_submitted. Only legal while the original
// window is still open.
func (s *paymentService) SubmitProof(ctx context.Context, paymentID utils.SixID, req Requester, proofRef string) (*models.Payment, error) {
	payment, err := s.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !req.IsAdmin && payment.SellerID != req.UserID {
		return nil, ErrNotOwner
	}

	now := time.Now().UTC()
	if payment.ProofAccepted() && payment.WindowExpired(now) {
		// Lazy expiry: claim the stale record if it is still live so it
		// cannot be paid against, then report the window as closed.
		if payment.Live() {
			if err := s.expireOne(ctx, payment, now); err != nil && !errors.Is(err, ErrConflict) {
				return nil, err
			}
		}
		return nil, ErrWindowExpired
	}
	if !payment.ProofAccepted() {
		return nil, fmt.Errorf("payment %s is %s: %w", paymentID.String(), payment.Status, ErrInvalidState)
	}

	filter := bson.M{
		"_id": paymentID,
		"status": bson.M{"$in": []models.PaymentStatus{
			models.PaymentStatusPending,
			models.PaymentStatusRejected,
		}},
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"status":             models.PaymentStatusProofSubmitted,
		"proof_ref":          proofRef,
		"proof_submitted_at": now,
	}}
	updated, err := s.applyTransition(ctx, paymentID, filter, update)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.SubjectProofSubmitted, updated)
	return updated, nil
}

// Review applies a moderation decision to a proof_submitted payment.
// Approval publishes the listing; rejection leaves it awaiting payment so
// the seller can resubmit while the window lasts. Two concurrent reviews
// cannot both apply: the compare-and-set lets only the first through.
func (s *paymentService) Review(ctx context.Context, paymentID utils.SixID, reviewer Requester, approve bool, note string) (*models.Payment, error) {
	if !reviewer.IsAdmin {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	status := models.PaymentStatusRejected
	if approve {
		status = models.PaymentStatusApproved
	}

	filter := bson.M{
		"_id":    paymentID,
		"status": models.PaymentStatusProofSubmitted,
	}
	update := bson.M{"$set": bson.M{
		"status":      status,
		"reviewed_at": now,
		"reviewer_id": reviewer.UserID,
		"review_note": note,
	}}
	updated, err := s.applyTransition(ctx, paymentID, filter, update)
	if err != nil {
		return nil, err
	}

	if approve {
		if err := s.listingService.PublishListing(ctx, updated.ListingID); err != nil {
			log.Printf("CRITICAL: payment %s approved but listing %s publish failed: %v", paymentID.String(), updated.ListingID.String(), err)
			return nil, fmt.Errorf("payment approved but listing publish failed: %w", err)
		}
		s.emit(ctx, events.SubjectPaymentApproved, updated)
	} else {
		s.emit(ctx, events.SubjectPaymentRejected, updated)
	}
	return updated, nil
}

// Cancel is the seller's explicit early termination of a live payment. The
// listing remains awaiting_payment, free to request a fresh activation.
func (s *paymentService) Cancel(ctx context.Context, paymentID utils.SixID, req Requester) (*models.Payment, error) {
	payment, err := s.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !req.IsAdmin && payment.SellerID != req.UserID {
		return nil, ErrNotOwner
	}

	filter := bson.M{
		"_id":    paymentID,
		"status": bson.M{"$in": models.LivePaymentStatuses},
	}
	update := bson.M{"$set": bson.M{
		"status": models.PaymentStatusCancelled,
	}}
	return s.applyTransition(ctx, paymentID, filter, update)
}

// SweepExpired marks every live payment past its window as expired and
// returns the records it claimed. The sweep is the only writer of the
// expired status; the compare-and-set per record means a payment reviewed
// or proof-submitted mid-sweep is left alone.
func (s *paymentService) SweepExpired(ctx context.Context) ([]models.Payment, error) {
	now := time.Now().UTC()
	coll := s.db.Collection(paymentsCollection)

	cursor, err := coll.Find(ctx, bson.M{
		"status":     bson.M{"$in": models.LivePaymentStatuses},
		"expires_at": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for expired payments: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []models.Payment
	if err = cursor.All(ctx, &candidates); err != nil {
		return nil, err
	}

	swept := make([]models.Payment, 0, len(candidates))
	for _, candidate := range candidates {
		if err := s.expireOne(ctx, &candidate, now); err != nil {
			if errors.Is(err, ErrConflict) {
				// Moved on (reviewed, cancelled or proof accepted elsewhere)
				// between the scan and our claim. Not ours to expire.
				continue
			}
			log.Printf("WARN: sweep failed to expire payment %s: %v", candidate.ID.String(), err)
			continue
		}
		candidate.Status = models.PaymentStatusExpired
		swept = append(swept, candidate)
	}
	return swept, nil
}

// FindPaymentByID fetches a payment by its ID.
func (s *paymentService) FindPaymentByID(ctx context.Context, paymentID utils.SixID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Collection(paymentsCollection).FindOne(ctx, bson.M{"_id": paymentID}).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding payment %s: %w", paymentID.String(), err)
	}
	return &payment, nil
}

// GetPaymentStatus returns the listing's most recent payment with its status
// resolved through the lazy-expiry rule: a live payment past its window is
// reported expired even before the sweep has claimed it.
func (s *paymentService) GetPaymentStatus(ctx context.Context, listingID utils.SixID) (*models.Payment, error) {
	var payment models.Payment
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	err := s.db.Collection(paymentsCollection).FindOne(ctx, bson.M{"listing_id": listingID}, opts).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding payment for listing %s: %w", listingID.String(), err)
	}
	payment.Status = payment.EffectiveStatus(time.Now().UTC())
	return &payment, nil
}

// FindLivePayment returns the listing's live payment, or ErrNotFound.
func (s *paymentService) FindLivePayment(ctx context.Context, listingID utils.SixID) (*models.Payment, error) {
	var payment models.Payment
	filter := bson.M{
		"listing_id": listingID,
		"status":     bson.M{"$in": models.LivePaymentStatuses},
	}
	err := s.db.Collection(paymentsCollection).FindOne(ctx, filter).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding live payment for listing %s: %w", listingID.String(), err)
	}
	return &payment, nil
}

// expireOne claims a single live payment past its window. The filter pins
// the status observed by the caller so a concurrent transition wins cleanly.
func (s *paymentService) expireOne(ctx context.Context, payment *models.Payment, now time.Time) error {
	filter := bson.M{
		"_id":        payment.ID,
		"status":     payment.Status,
		"expires_at": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{
		"status": models.PaymentStatusExpired,
	}}
	result, err := s.db.Collection(paymentsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error expiring payment %s: %w", payment.ID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrConflict
	}
	expired := *payment
	expired.Status = models.PaymentStatusExpired
	s.emit(ctx, events.SubjectPaymentExpired, &expired)
	return nil
}

// applyTransition runs a compare-and-set status update and, when nothing
// matched, re-fetches the record to report which precondition failed.
func (s *paymentService) applyTransition(ctx context.Context, paymentID utils.SixID, filter, update bson.M) (*models.Payment, error) {
	coll := s.db.Collection(paymentsCollection)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Payment
	err := coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("db error updating payment %s: %w", paymentID.String(), err)
	}

	// Diagnose why the compare-and-set missed.
	current, checkErr := s.FindPaymentByID(ctx, paymentID)
	if checkErr != nil {
		return nil, checkErr
	}
	if current.ProofAccepted() && current.WindowExpired(time.Now().UTC()) {
		return nil, ErrWindowExpired
	}
	return nil, fmt.Errorf("payment %s is %s: %w", paymentID.String(), current.Status, ErrInvalidState)
}

func (s *paymentService) emit(ctx context.Context, subject string, payment *models.Payment) {
	event := events.PaymentEvent{
		PaymentID:  payment.ID.String(),
		ListingID:  payment.ListingID.String(),
		SellerID:   payment.SellerID.String(),
		Status:     string(payment.Status),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		log.Printf("WARN: failed to publish %s for payment %s: %v", subject, payment.ID.String(), err)
	}
}
