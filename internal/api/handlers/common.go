package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"vitrine/backend/internal/api/middleware"
	"vitrine/backend/internal/services"
	"vitrine/backend/internal/utils"
)

// IAsynqClient defines the interface for the Asynq client methods used by handlers.
// This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// requesterFromContext rebuilds the acting user from the values the auth
// middleware stored. Aborts with 401 if the context is missing them.
func requesterFromContext(c *gin.Context) (services.Requester, bool) {
	userIDVal, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return services.Requester{}, false
	}
	userID, err := utils.ParseSixID(userIDVal.(string))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user identity in token"})
		return services.Requester{}, false
	}
	isAdmin, _ := c.Get(middleware.ContextKeyIsAdmin)
	admin, _ := isAdmin.(bool)
	return services.Requester{UserID: userID, IsAdmin: admin}, true
}

// respondServiceError translates service-layer errors into HTTP responses.
// Every domain failure maps to a specific status; only unknown errors fall
// through to 500.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound) || errors.Is(err, mongo.ErrNoDocuments):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not own this resource"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Operation not permitted"})
	case errors.Is(err, services.ErrWindowExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Payment window has expired"})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Resource was modified concurrently, retry"})
	case errors.Is(err, services.ErrAmbiguousSelection):
		c.JSON(http.StatusConflict, gin.H{"error": "Multiple sales teams available, explicit selection required"})
	case errors.Is(err, services.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
