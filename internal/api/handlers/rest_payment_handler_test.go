package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"vitrine/backend/internal/api/handlers"
	"vitrine/backend/internal/models"
	"vitrine/backend/internal/services"
	"vitrine/backend/internal/tasks"
	"vitrine/backend/internal/utils"
)

type paymentHandlerMocks struct {
	paymentSvc *MockPaymentService
	listingSvc *MockListingService
	userSvc    *MockUserService
	storageSvc *MockS3Storage
	taskClient *MockAsynqClient
}

func newPaymentTestRouter(userID utils.SixID, isAdmin bool) (*gin.Engine, paymentHandlerMocks) {
	gin.SetMode(gin.TestMode)
	m := paymentHandlerMocks{
		paymentSvc: new(MockPaymentService),
		listingSvc: new(MockListingService),
		userSvc:    new(MockUserService),
		storageSvc: new(MockS3Storage),
		taskClient: new(MockAsynqClient),
	}
	handler := handlers.NewRestPaymentHandler(m.paymentSvc, m.listingSvc, m.userSvc, m.storageSvc, m.taskClient)

	router := gin.New()
	auth := router.Group("/v1", authAs(userID, isAdmin))
	auth.POST("/listings/:id/activation", handler.RequestActivation)
	auth.GET("/listings/:id/payment", handler.GetPaymentStatus)
	auth.POST("/payments/:id/proof-upload", handler.CreateProofUploadURL)
	auth.POST("/payments/:id/proof", handler.SubmitProof)
	auth.POST("/payments/:id/cancel", handler.CancelPayment)
	auth.POST("/admin/payments/:id/review", handler.ReviewPayment)
	return router, m
}

func pendingPayment(listingID, sellerID utils.SixID) *models.Payment {
	return &models.Payment{
		Base:         models.NewBase(),
		ListingID:    listingID,
		SellerID:     sellerID,
		Amount:       25.0,
		CurrencyCode: "BRL",
		Status:       models.PaymentStatusPending,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(72 * time.Hour),
	}
}

func TestRequestActivation(t *testing.T) {
	userID := utils.NewSixID()
	listingID := utils.NewSixID()
	router, m := newPaymentTestRouter(userID, false)

	payment := pendingPayment(listingID, userID)
	m.paymentSvc.On("RequestActivation", mock.Anything, listingID, services.Requester{UserID: userID}).
		Return(payment, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listings/"+listingID.String()+"/activation", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var got models.Payment
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, payment.ID, got.ID)
	assert.Equal(t, 25.0, got.Amount)
	assert.Equal(t, models.PaymentStatusPending, got.Status)
}

func TestRequestActivation_WrongState(t *testing.T) {
	userID := utils.NewSixID()
	listingID := utils.NewSixID()
	router, m := newPaymentTestRouter(userID, false)

	m.paymentSvc.On("RequestActivation", mock.Anything, listingID, mock.Anything).
		Return(nil, services.ErrInvalidState)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listings/"+listingID.String()+"/activation", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitProof(t *testing.T) {
	userID := utils.NewSixID()
	paymentID := utils.NewSixID()
	router, m := newPaymentTestRouter(userID, false)

	payment := pendingPayment(utils.NewSixID(), userID)
	payment.ID = paymentID
	payment.Status = models.PaymentStatusProofSubmitted
	payment.ProofRef = "proofs/abc/receipt.jpg"
	m.paymentSvc.On("SubmitProof", mock.Anything, paymentID, mock.Anything, "proofs/abc/receipt.jpg").
		Return(payment, nil)
	m.taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeImageProcess
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil)

	body, _ := json.Marshal(gin.H{"proof_ref": "proofs/abc/receipt.jpg"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/payments/"+paymentID.String()+"/proof", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got models.Payment
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.PaymentStatusProofSubmitted, got.Status)
	m.taskClient.AssertExpectations(t)
}

func TestSubmitProof_WindowExpired(t *testing.T) {
	userID := utils.NewSixID()
	paymentID := utils.NewSixID()
	router, m := newPaymentTestRouter(userID, false)

	m.paymentSvc.On("SubmitProof", mock.Anything, paymentID, mock.Anything, mock.Anything).
		Return(nil, services.ErrWindowExpired)

	body, _ := json.Marshal(gin.H{"proof_ref": "proofs/abc/receipt.jpg"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/payments/"+paymentID.String()+"/proof", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGone, w.Code)
	m.taskClient.AssertNotCalled(t, "EnqueueContext")
}

func TestCreateProofUploadURL_NotOwner(t *testing.T) {
	userID := utils.NewSixID()
	paymentID := utils.NewSixID()
	router, m := newPaymentTestRouter(userID, false)

	someoneElses := pendingPayment(utils.NewSixID(), utils.NewSixID())
	someoneElses.ID = paymentID
	m.paymentSvc.On("FindPaymentByID", mock.Anything, paymentID).Return(someoneElses, nil)

	body, _ := json.Marshal(gin.H{"filename": "receipt.jpg", "content_type": "image/jpeg"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/payments/"+paymentID.String()+"/proof-upload", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	m.storageSvc.AssertNotCalled(t, "GeneratePresignedPutURL")
}

func TestCreateProofUploadURL(t *testing.T) {
	userID := utils.NewSixID()
	paymentID := utils.NewSixID()
	router, m := newPaymentTestRouter(userID, false)

	payment := pendingPayment(utils.NewSixID(), userID)
	payment.ID = paymentID
	m.paymentSvc.On("FindPaymentByID", mock.Anything, paymentID).Return(payment, nil)
	m.storageSvc.On("GeneratePresignedPutURL", mock.Anything, userID.String(), paymentID.String(), "receipt.jpg", "image/jpeg").
		Return("https://s3.example.com/put", "proofs/abc/receipt.jpg", nil)

	body, _ := json.Marshal(gin.H{"filename": "receipt.jpg", "content_type": "image/jpeg"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/payments/"+paymentID.String()+"/proof-upload", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "proofs/abc/receipt.jpg", got["proof_ref"])
}

func TestReviewPayment_ApproveSendsEmail(t *testing.T) {
	adminID := utils.NewSixID()
	sellerID := utils.NewSixID()
	paymentID := utils.NewSixID()
	listingID := utils.NewSixID()
	router, m := newPaymentTestRouter(adminID, true)

	payment := pendingPayment(listingID, sellerID)
	payment.ID = paymentID
	payment.Status = models.PaymentStatusApproved
	m.paymentSvc.On("Review", mock.Anything, paymentID, services.Requester{UserID: adminID, IsAdmin: true}, true, "Looks good").
		Return(payment, nil)
	m.userSvc.On("FindByID", mock.Anything, sellerID).
		Return(&models.User{Base: models.Base{ID: sellerID}, Email: "seller@example.com"}, nil)
	m.listingSvc.On("FindListingByID", mock.Anything, listingID).
		Return(&models.Listing{ID: listingID, SellerID: sellerID, Title: "Old bike"}, nil)
	m.taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != tasks.TypeEmailDelivery {
			return false
		}
		var payload tasks.EmailTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return false
		}
		return payload.To == "seller@example.com" && payload.TemplateID == "payment_approved"
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil)

	body, _ := json.Marshal(gin.H{"approve": true, "note": "Looks good"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/admin/payments/"+paymentID.String()+"/review", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	m.taskClient.AssertExpectations(t)
}

func TestReviewPayment_RejectedTemplate(t *testing.T) {
	adminID := utils.NewSixID()
	sellerID := utils.NewSixID()
	paymentID := utils.NewSixID()
	listingID := utils.NewSixID()
	router, m := newPaymentTestRouter(adminID, true)

	payment := pendingPayment(listingID, sellerID)
	payment.ID = paymentID
	payment.Status = models.PaymentStatusRejected
	payment.ReviewNote = "Blurry receipt"
	m.paymentSvc.On("Review", mock.Anything, paymentID, mock.Anything, false, "Blurry receipt").
		Return(payment, nil)
	m.userSvc.On("FindByID", mock.Anything, sellerID).
		Return(&models.User{Base: models.Base{ID: sellerID}, Email: "seller@example.com"}, nil)
	m.listingSvc.On("FindListingByID", mock.Anything, listingID).
		Return(&models.Listing{ID: listingID, SellerID: sellerID, Title: "Old bike"}, nil)
	m.taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var payload tasks.EmailTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return false
		}
		return payload.TemplateID == "payment_rejected" && payload.Data["review_note"] == "Blurry receipt"
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil)

	body, _ := json.Marshal(gin.H{"approve": false, "note": "Blurry receipt"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/admin/payments/"+paymentID.String()+"/review", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	m.taskClient.AssertExpectations(t)
}

func TestReviewPayment_NotReviewable(t *testing.T) {
	adminID := utils.NewSixID()
	paymentID := utils.NewSixID()
	router, m := newPaymentTestRouter(adminID, true)

	m.paymentSvc.On("Review", mock.Anything, paymentID, mock.Anything, true, "").
		Return(nil, services.ErrInvalidState)

	body, _ := json.Marshal(gin.H{"approve": true})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/admin/payments/"+paymentID.String()+"/review", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	m.taskClient.AssertNotCalled(t, "EnqueueContext")
}

func TestCancelPayment_NotOwner(t *testing.T) {
	userID := utils.NewSixID()
	paymentID := utils.NewSixID()
	router, m := newPaymentTestRouter(userID, false)

	m.paymentSvc.On("Cancel", mock.Anything, paymentID, mock.Anything).
		Return(nil, services.ErrNotOwner)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/payments/"+paymentID.String()+"/cancel", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetPaymentStatus_None(t *testing.T) {
	userID := utils.NewSixID()
	listingID := utils.NewSixID()
	router, m := newPaymentTestRouter(userID, false)

	m.paymentSvc.On("GetPaymentStatus", mock.Anything, listingID).
		Return(nil, services.ErrNotFound)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listings/"+listingID.String()+"/payment", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
