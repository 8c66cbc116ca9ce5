package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitrine/backend/internal/services"
	"vitrine/backend/internal/storage"
	"vitrine/backend/internal/tasks"
	"vitrine/backend/internal/utils"
)

// RestPaymentHandler handles REST requests for activation payments.
type RestPaymentHandler struct {
	paymentService services.IPaymentService
	listingService services.IListingService
	userService    services.IUserService
	storageService storage.IS3Storage
	taskClient     IAsynqClient
}

// NewRestPaymentHandler creates a new RestPaymentHandler.
func NewRestPaymentHandler(
	paymentService services.IPaymentService,
	listingService services.IListingService,
	userService services.IUserService,
	storageService storage.IS3Storage,
	taskClient IAsynqClient,
) *RestPaymentHandler {
	return &RestPaymentHandler{
		paymentService: paymentService,
		listingService: listingService,
		userService:    userService,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

// RequestActivation handles POST /v1/listings/:id/activation. Repeating the
// call while a payment window is open returns the existing payment.
func (h *RestPaymentHandler) RequestActivation(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	payment, err := h.paymentService.RequestActivation(c.Request.Context(), listingID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// GetPaymentStatus handles GET /v1/listings/:id/payment
func (h *RestPaymentHandler) GetPaymentStatus(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	payment, err := h.paymentService.GetPaymentStatus(c.Request.Context(), listingID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// ProofUploadRequest is the body for POST /v1/payments/:id/proof-upload.
type ProofUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// CreateProofUploadURL handles POST /v1/payments/:id/proof-upload. The
// returned key is what the client then submits as the proof reference.
func (h *RestPaymentHandler) CreateProofUploadURL(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	paymentID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID format"})
		return
	}

	var body ProofUploadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	payment, err := h.paymentService.FindPaymentByID(c.Request.Context(), paymentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if payment.SellerID != req.UserID && !req.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not own this payment"})
		return
	}

	uploadURL, objectKey, err := h.storageService.GeneratePresignedPutURL(
		c.Request.Context(), req.UserID.String(), paymentID.String(), body.Filename, body.ContentType)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload_url": uploadURL,
		"proof_ref":  objectKey,
	})
}

// SubmitProofRequest is the body for POST /v1/payments/:id/proof.
type SubmitProofRequest struct {
	ProofRef string `json:"proof_ref" binding:"required"`
}

// SubmitProof handles POST /v1/payments/:id/proof
func (h *RestPaymentHandler) SubmitProof(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	paymentID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID format"})
		return
	}

	var body SubmitProofRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	payment, err := h.paymentService.SubmitProof(c.Request.Context(), paymentID, req, body.ProofRef)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// Normalize the uploaded proof image in the background. Not attached to
	// a listing, so no document update follows.
	if task, terr := tasks.NewImageProcessTask(tasks.ImageTaskPayload{S3Key: body.ProofRef}); terr == nil {
		if _, qerr := h.taskClient.EnqueueContext(c.Request.Context(), task); qerr != nil {
			log.Printf("WARN failed to enqueue proof normalization for payment %s: %v", paymentID.String(), qerr)
		}
	}

	c.JSON(http.StatusOK, payment)
}

// ReviewPaymentRequest is the body for POST /v1/admin/payments/:id/review.
type ReviewPaymentRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// ReviewPayment handles POST /v1/admin/payments/:id/review. Admin only; the
// route group enforces that before the service checks it again.
func (h *RestPaymentHandler) ReviewPayment(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	paymentID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID format"})
		return
	}

	var body ReviewPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	payment, err := h.paymentService.Review(c.Request.Context(), paymentID, req, body.Approve, body.Note)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.notifySeller(c, payment.SellerID, payment.ListingID, body.Approve, body.Note)

	c.JSON(http.StatusOK, payment)
}

// notifySeller enqueues the review decision email. Failures are logged, not
// surfaced; the review itself already succeeded.
func (h *RestPaymentHandler) notifySeller(c *gin.Context, sellerID, listingID utils.SixID, approved bool, note string) {
	ctx := c.Request.Context()

	seller, err := h.userService.FindByID(ctx, sellerID)
	if err != nil {
		log.Printf("WARN could not load seller %s for review notification: %v", sellerID.String(), err)
		return
	}
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		log.Printf("WARN could not load listing %s for review notification: %v", listingID.String(), err)
		return
	}

	templateID := "payment_rejected"
	if approved {
		templateID = "payment_approved"
	}

	task, err := tasks.NewEmailDeliveryTask(tasks.EmailTaskPayload{
		To:         seller.Email,
		TemplateID: templateID,
		Data: map[string]interface{}{
			"listing_title": listing.Title,
			"review_note":   note,
		},
	})
	if err != nil {
		log.Printf("WARN could not build review notification task: %v", err)
		return
	}
	if _, err := h.taskClient.EnqueueContext(ctx, task); err != nil {
		log.Printf("WARN failed to enqueue review notification for listing %s: %v", listingID.String(), err)
	}
}

// CancelPayment handles POST /v1/payments/:id/cancel
func (h *RestPaymentHandler) CancelPayment(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	paymentID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID format"})
		return
	}

	payment, err := h.paymentService.Cancel(c.Request.Context(), paymentID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}
