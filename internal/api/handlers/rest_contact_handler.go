package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitrine/backend/internal/models"
	"vitrine/backend/internal/services"
	"vitrine/backend/internal/utils"
)

// RestContactHandler handles sales team management and buyer contact routing.
type RestContactHandler struct {
	teamService    services.ITeamService
	listingService services.IListingService
}

// NewRestContactHandler creates a new RestContactHandler.
func NewRestContactHandler(teamService services.ITeamService, listingService services.IListingService) *RestContactHandler {
	return &RestContactHandler{
		teamService:    teamService,
		listingService: listingService,
	}
}

// CreateTeamRequest is the body for POST /v1/teams.
type CreateTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateTeam handles POST /v1/teams
func (h *RestContactHandler) CreateTeam(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}

	var body CreateTeamRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	team, err := h.teamService.CreateTeam(c.Request.Context(), req.UserID, req, body.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, team)
}

// GetTeam handles GET /v1/teams/:id
func (h *RestContactHandler) GetTeam(c *gin.Context) {
	teamID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team ID format"})
		return
	}

	team, err := h.teamService.FindTeamByID(c.Request.Context(), teamID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

// AddMemberRequest is the body for POST /v1/teams/:id/members.
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Phone  string `json:"phone"`
}

// AddMember handles POST /v1/teams/:id/members
func (h *RestContactHandler) AddMember(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	teamID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team ID format"})
		return
	}

	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	memberUserID, err := utils.ParseSixID(body.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member user ID format"})
		return
	}

	team, err := h.teamService.AddMember(c.Request.Context(), teamID, req, memberUserID, body.Name, body.Phone)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

// RemoveMember handles DELETE /v1/teams/:id/members/:member_id
func (h *RestContactHandler) RemoveMember(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	teamID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team ID format"})
		return
	}
	memberID, err := utils.ParseSixID(c.Param("member_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID format"})
		return
	}

	if err := h.teamService.RemoveMember(c.Request.Context(), teamID, memberID, req); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetAvailabilityRequest is the body for PUT /v1/teams/:id/members/:member_id/availability.
type SetAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// SetMemberAvailability handles PUT /v1/teams/:id/members/:member_id/availability
func (h *RestContactHandler) SetMemberAvailability(c *gin.Context) {
	req, ok := requesterFromContext(c)
	if !ok {
		return
	}
	teamID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team ID format"})
		return
	}
	memberID, err := utils.ParseSixID(c.Param("member_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID format"})
		return
	}

	var body SetAvailabilityRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.teamService.SetMemberAvailability(c.Request.Context(), teamID, memberID, req, *body.Available); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetAvailableMembers handles GET /v1/teams/:id/members/available. An empty
// list is a valid answer for an existing team.
func (h *RestContactHandler) GetAvailableMembers(c *gin.Context) {
	teamID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team ID format"})
		return
	}

	members, err := h.teamService.AvailableMembers(c.Request.Context(), teamID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

// ContactRoute is the response for GET /v1/listings/:id/contact.
type ContactRoute struct {
	Team      *models.SalesTeam   `json:"team"`
	Members   []models.TeamMember `json:"members"`
	Ambiguous bool                `json:"ambiguous"`
	Teams     []models.SalesTeam  `json:"teams,omitempty"`
}

// GetContactRoute handles GET /v1/listings/:id/contact. It resolves the
// seller's sales teams: a single team is selected automatically, no teams
// means the seller is contacted directly, and multiple teams are returned
// for the caller to choose from.
func (h *RestContactHandler) GetContactRoute(c *gin.Context) {
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
	// Contact routing only exists for listings buyers can currently see.
	if !listing.Visible() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	teams, err := h.teamService.ResolveTeams(c.Request.Context(), listing.SellerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	team, err := h.teamService.SelectTeam(teams)
	if err != nil {
		if errors.Is(err, services.ErrAmbiguousSelection) {
			c.JSON(http.StatusOK, ContactRoute{Ambiguous: true, Teams: teams})
			return
		}
		respondServiceError(c, err)
		return
	}

	route := ContactRoute{Team: team}
	if team != nil {
		route.Members = team.AvailableMembers()
	}
	c.JSON(http.StatusOK, route)
}
