package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"vitrine/backend/internal/models"
	"vitrine/backend/internal/services"
	"vitrine/backend/internal/storage"
	"vitrine/backend/internal/tasks"
	"vitrine/backend/internal/utils"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
	guard          services.IListingAccessGuard
	storageService storage.IS3Storage
	taskClient     IAsynqClient
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(
	listingService services.IListingService,
	guard services.IListingAccessGuard,
	storageService storage.IS3Storage,
	taskClient IAsynqClient,
) *RestListingHandler {
	return &RestListingHandler{
		listingService: listingService,
		guard:          guard,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

// CreateListingRequest is the body for POST /v1/listings.
type CreateListingRequest struct {
	Title       string              `json:"title" binding:"required"`
	Body        string              `json:"body"`
	Tags        []string            `json:"tags"`
	AskingPrice *models.AskingPrice `json:"asking_price"`
}

// CreateListing handles POST /v1/listings. The listing starts as a draft;
// publishing happens through the activation payment flow.
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}

	var body CreateListingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), req.UserID, body.Title, body.Body, body.Tags, body.AskingPrice)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// GetListingByID handles GET /v1/listings/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// UpdateListingRequest is the body for PATCH /v1/listings/:id. Only the
// fields present are applied.
type UpdateListingRequest struct {
	Title       *string             `json:"title"`
	Body        *string             `json:"body"`
	Tags        []string            `json:"tags"`
	AskingPrice *models.AskingPrice `json:"asking_price"`
	IsDonation  *bool               `json:"is_donation"`
	ExpiresAt   *time.Time          `json:"expires_at"`
}

// UpdateListing handles PATCH /v1/listings/:id
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	var body UpdateListingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if body.Title != nil {
		updates["title"] = *body.Title
	}
	if body.Body != nil {
		updates["body"] = *body.Body
	}
	if body.Tags != nil {
		updates["tags"] = body.Tags
	}
	if body.AskingPrice != nil {
		updates["asking_price"] = *body.AskingPrice
	}
	if body.IsDonation != nil {
		updates["is_donation"] = *body.IsDonation
	}
	if body.ExpiresAt != nil {
		updates["expires_at"] = *body.ExpiresAt
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No updatable fields in request"})
		return
	}

	listing, err := h.listingService.UpdateListing(c.Request.Context(), listingID, req, updates)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// DeactivateListing handles POST /v1/listings/:id/deactivate
func (h *RestListingHandler) DeactivateListing(c *gin.Context) {
	h.transition(c, h.listingService.DeactivateListing)
}

// ReactivateListing handles POST /v1/listings/:id/reactivate
func (h *RestListingHandler) ReactivateListing(c *gin.Context) {
	h.transition(c, h.listingService.ReactivateListing)
}

// DeleteListing handles DELETE /v1/listings/:id. Listings are archived, not
// removed.
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	h.transition(c, h.listingService.ArchiveListing)
}

func (h *RestListingHandler) transition(c *gin.Context, apply func(ctx context.Context, listingID utils.SixID, req services.Requester) error) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	if err := apply(c.Request.Context(), listingID, req); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListingPermissions reports which guarded operations the requester may
// perform on a listing right now.
type ListingPermissions struct {
	CanEdit       bool `json:"can_edit"`
	CanDeactivate bool `json:"can_deactivate"`
	CanReactivate bool `json:"can_reactivate"`
	CanDelete     bool `json:"can_delete"`
}

// GetListingPermissions handles GET /v1/listings/:id/permissions
func (h *RestListingHandler) GetListingPermissions(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListingPermissions{
		CanEdit:       h.guard.CanEdit(listing, req),
		CanDeactivate: h.guard.CanDeactivate(listing, req),
		CanReactivate: h.guard.CanReactivate(listing, req),
		CanDelete:     h.guard.CanDelete(listing, req),
	})
}

// GetSellerListings handles GET /v1/sellers/:id/listings
func (h *RestListingHandler) GetSellerListings(c *gin.Context) {
	sellerID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid seller ID format"})
		return
	}

	listings, err := h.listingService.FindListingsBySellerID(c.Request.Context(), sellerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// ImageUploadRequest is the body for POST /v1/listings/:id/images.
type ImageUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// CreateImageUploadURL handles POST /v1/listings/:id/images. It returns a
// pre-signed PUT URL and enqueues normalization for the uploaded object.
func (h *RestListingHandler) CreateImageUploadURL(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	var body ImageUploadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !h.guard.CanEdit(listing, req) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot edit this listing"})
		return
	}

	uploadURL, objectKey, err := h.storageService.GeneratePresignedPutURL(
		c.Request.Context(), req.UserID.String(), listingID.String(), body.Filename, body.ContentType)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	task, err := tasks.NewImageProcessTask(tasks.ImageTaskPayload{
		S3Key:     objectKey,
		ListingID: listingID.String(),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	// Delay processing to give the client time to finish the upload.
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.ProcessIn(2*time.Minute)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload_url": uploadURL,
		"key":        objectKey,
	})
}
