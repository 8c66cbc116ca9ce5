package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vitrine/backend/internal/services"
	"vitrine/backend/internal/utils"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService    services.IUserService
	listingService services.IListingService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService, listingService services.IListingService) *RestUserHandler {
	return &RestUserHandler{
		userService:    userService,
		listingService: listingService,
	}
}

// PublicUser represents the data returned for a user profile.
type PublicUser struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DateJoined   string `json:"date_joined"`
	ListingCount int    `json:"listing_count"`
}

// GetUserByID handles GET /v1/user/:id
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	userID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	listingCount := 0
	if listings, lerr := h.listingService.FindListingsBySellerID(c.Request.Context(), userID); lerr == nil {
		for _, l := range listings {
			if l.Visible() {
				listingCount++
			}
		}
	}

	c.JSON(http.StatusOK, PublicUser{
		ID:           user.ID.String(),
		Name:         user.Name,
		DateJoined:   user.CreatedAt.Format("2006-01-02"),
		ListingCount: listingCount,
	})
}
