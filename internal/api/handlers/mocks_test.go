package handlers_test

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"vitrine/backend/internal/api/middleware"
	"vitrine/backend/internal/models"
	"vitrine/backend/internal/services"
	"vitrine/backend/internal/utils"
)

// --- Mocks ---

// MockListingService implements services.IListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, sellerID utils.SixID, title, body string, tags []string, askingPrice *models.AskingPrice) (*models.Listing, error) {
	args := m.Called(ctx, sellerID, title, body, tags, askingPrice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID utils.SixID, req services.Requester, updates map[string]interface{}) (*models.Listing, error) {
	args := m.Called(ctx, listingID, req, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) DeactivateListing(ctx context.Context, listingID utils.SixID, req services.Requester) error {
	args := m.Called(ctx, listingID, req)
	return args.Error(0)
}

func (m *MockListingService) ReactivateListing(ctx context.Context, listingID utils.SixID, req services.Requester) error {
	args := m.Called(ctx, listingID, req)
	return args.Error(0)
}

func (m *MockListingService) ArchiveListing(ctx context.Context, listingID utils.SixID, req services.Requester) error {
	args := m.Called(ctx, listingID, req)
	return args.Error(0)
}

func (m *MockListingService) GetListingStatus(ctx context.Context, listingID utils.SixID) (models.ListingStatus, bool, error) {
	args := m.Called(ctx, listingID)
	return args.Get(0).(models.ListingStatus), args.Bool(1), args.Error(2)
}

func (m *MockListingService) FindListingsBySellerID(ctx context.Context, sellerID utils.SixID) ([]models.Listing, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	args := m.Called(ctx, listingID, imageKey)
	return args.Error(0)
}

func (m *MockListingService) BeginActivation(ctx context.Context, listingID utils.SixID) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockListingService) PublishListing(ctx context.Context, listingID utils.SixID) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

// MockPaymentService implements services.IPaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) RequestActivation(ctx context.Context, listingID utils.SixID, req services.Requester) (*models.Payment, error) {
	args := m.Called(ctx, listingID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) SubmitProof(ctx context.Context, paymentID utils.SixID, req services.Requester, proofRef string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, req, proofRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) Review(ctx context.Context, paymentID utils.SixID, reviewer services.Requester, approve bool, note string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, reviewer, approve, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) Cancel(ctx context.Context, paymentID utils.SixID, req services.Requester) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) SweepExpired(ctx context.Context) ([]models.Payment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockPaymentService) FindPaymentByID(ctx context.Context, paymentID utils.SixID) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) GetPaymentStatus(ctx context.Context, listingID utils.SixID) (*models.Payment, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) FindLivePayment(ctx context.Context, listingID utils.SixID) (*models.Payment, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

// MockTeamService implements services.ITeamService
type MockTeamService struct {
	mock.Mock
}

func (m *MockTeamService) CreateTeam(ctx context.Context, sellerID utils.SixID, req services.Requester, name string) (*models.SalesTeam, error) {
	args := m.Called(ctx, sellerID, req, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SalesTeam), args.Error(1)
}

func (m *MockTeamService) FindTeamByID(ctx context.Context, teamID utils.SixID) (*models.SalesTeam, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SalesTeam), args.Error(1)
}

func (m *MockTeamService) AddMember(ctx context.Context, teamID utils.SixID, req services.Requester, userID utils.SixID, name, phone string) (*models.SalesTeam, error) {
	args := m.Called(ctx, teamID, req, userID, name, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SalesTeam), args.Error(1)
}

func (m *MockTeamService) RemoveMember(ctx context.Context, teamID, memberID utils.SixID, req services.Requester) error {
	args := m.Called(ctx, teamID, memberID, req)
	return args.Error(0)
}

func (m *MockTeamService) SetMemberAvailability(ctx context.Context, teamID, memberID utils.SixID, req services.Requester, available bool) error {
	args := m.Called(ctx, teamID, memberID, req, available)
	return args.Error(0)
}

func (m *MockTeamService) ResolveTeams(ctx context.Context, sellerID utils.SixID) ([]models.SalesTeam, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SalesTeam), args.Error(1)
}

func (m *MockTeamService) SelectTeam(teams []models.SalesTeam) (*models.SalesTeam, error) {
	args := m.Called(teams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SalesTeam), args.Error(1)
}

func (m *MockTeamService) AvailableMembers(ctx context.Context, teamID utils.SixID) ([]models.TeamMember, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TeamMember), args.Error(1)
}

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) RegisterUser(ctx context.Context, name, email, password string) (*models.User, error) {
	args := m.Called(ctx, name, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, userID, recordID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, recordID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// authAs injects the identity the auth middleware would have set.
func authAs(userID utils.SixID, isAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID.String())
		c.Set(middleware.ContextKeyIsAdmin, isAdmin)
		c.Next()
	}
}
