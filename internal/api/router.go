package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"vitrine/backend/internal/api/handlers"
	"vitrine/backend/internal/api/middleware"
	"vitrine/backend/internal/config"
	"vitrine/backend/internal/events"
	"vitrine/backend/internal/payments"
	"vitrine/backend/internal/services"
	"vitrine/backend/internal/storage"
	"vitrine/backend/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(
	cfg *config.Config,
	db *mongo.Database,
	rdb *redis.Client,
	taskClient handlers.IAsynqClient,
	configSvc services.IConfigService,
	publisher events.IPublisher,
	gateway payments.IPaymentGateway,
) *gin.Engine {
	// Initialize services needed by API handlers HERE
	userService := services.NewUserService(db)
	guard := services.NewListingAccessGuard()
	listingService := services.NewListingService(db, guard)
	paymentService := services.NewPaymentService(db, cfg, configSvc, listingService, gateway, publisher)
	teamService := services.NewTeamService(db)
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, configSvc)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	authHandler := handlers.NewRestAuthHandler(cfg, userService)
	configHandler := handlers.NewRestConfigHandler(configSvc)
	listingHandler := handlers.NewRestListingHandler(listingService, guard, s3StorageService, taskClient)
	paymentHandler := handlers.NewRestPaymentHandler(paymentService, listingService, userService, s3StorageService, taskClient)
	contactHandler := handlers.NewRestContactHandler(teamService, listingService)
	userHandler := handlers.NewRestUserHandler(userService, listingService)

	v1 := r.Group("/v1")
	{
		// Public Routes (Rate limiting already applied globally)
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)
		v1.GET("/config", configHandler.GetPublicConfig)

		v1.GET("/listings/:id", listingHandler.GetListingByID)
		v1.GET("/listings/:id/contact", contactHandler.GetContactRoute)
		v1.GET("/sellers/:id/listings", listingHandler.GetSellerListings)
		v1.GET("/user/:id", userHandler.GetUserByID)
		v1.GET("/teams/:id", contactHandler.GetTeam)
		v1.GET("/teams/:id/members/available", contactHandler.GetAvailableMembers)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated Routes (already have rate limiting from global middleware)
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/listings", listingHandler.CreateListing)
			authRequired.PATCH("/listings/:id", listingHandler.UpdateListing)
			authRequired.POST("/listings/:id/deactivate", listingHandler.DeactivateListing)
			authRequired.POST("/listings/:id/reactivate", listingHandler.ReactivateListing)
			authRequired.DELETE("/listings/:id", listingHandler.DeleteListing)
			authRequired.GET("/listings/:id/permissions", listingHandler.GetListingPermissions)
			authRequired.POST("/listings/:id/images", listingHandler.CreateImageUploadURL)

			authRequired.POST("/listings/:id/activation", paymentHandler.RequestActivation)
			authRequired.GET("/listings/:id/payment", paymentHandler.GetPaymentStatus)
			authRequired.POST("/payments/:id/proof-upload", paymentHandler.CreateProofUploadURL)
			authRequired.POST("/payments/:id/proof", paymentHandler.SubmitProof)
			authRequired.POST("/payments/:id/cancel", paymentHandler.CancelPayment)

			authRequired.POST("/teams", contactHandler.CreateTeam)
			authRequired.POST("/teams/:id/members", contactHandler.AddMember)
			authRequired.DELETE("/teams/:id/members/:member_id", contactHandler.RemoveMember)
			authRequired.PUT("/teams/:id/members/:member_id/availability", contactHandler.SetMemberAvailability)
		}

		// Admin Routes (already have rate limiting from global middleware)
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.POST("/payments/:id/review", paymentHandler.ReviewPayment)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the internal service Gin engine.
// It exposes operational commands on a separate port.
func SetupServiceRouter(cfg *config.Config, taskClient handlers.IAsynqClient, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "sweepPayments":
			// Manual trigger for the payment expiry sweep, outside the
			// scheduler cadence.
			task := asynq.NewTask(tasks.TypePaymentSweep, nil)
			if _, err := taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
				log.Printf("Service API: failed to enqueue payment sweep: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to enqueue sweep"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Sweep enqueued"})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
