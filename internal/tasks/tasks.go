package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"vitrine/backend/internal/config"
	"vitrine/backend/internal/email"
	"vitrine/backend/internal/services"
	"vitrine/backend/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
	TypePaymentSweep  = "payment:sweep"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}
	return asynq.NewClient(clientOpt)
}

// NewEmailDeliveryTask builds an email delivery task.
func NewEmailDeliveryTask(payload EmailTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, data), nil
}

// NewImageProcessTask builds an image normalization task.
func NewImageProcessTask(payload ImageTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, data, asynq.Queue("images")), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	listingService       services.IListingService
	paymentService       services.IPaymentService
	userService          services.IUserService
	emailTemplateService services.IEmailTemplateService
	s3Client             *s3.Client
	taskClient           *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	listingService services.IListingService,
	paymentService services.IPaymentService,
	userService services.IUserService,
	emailTemplateService services.IEmailTemplateService,
	s3Client *s3.Client,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		listingService:       listingService,
		paymentService:       paymentService,
		userService:          userService,
		emailTemplateService: emailTemplateService,
		s3Client:             s3Client,
		taskClient:           taskClient,
	}
}

// SetupServer configures an Asynq server and its handler mux. The caller
// runs it. Returns nil when the mode registers no handlers.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypePaymentSweep, processor.HandlePaymentSweepTask)
		fmt.Println("Registered background task handlers (email & payment sweep).")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		fmt.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		fmt.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// SetupScheduler returns a scheduler that periodically enqueues the payment
// expiry sweep. Run alongside the background task server.
func SetupScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: rdb.Options().Addr},
		&asynq.SchedulerOpts{Location: time.UTC},
	)
	_, err := scheduler.Register(cfg.PaymentSweepInterval, asynq.NewTask(TypePaymentSweep, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to register payment sweep schedule: %w", err)
	}
	return scheduler, nil
}

// --- Task Handlers ---

// EmailTaskPayload carries a templated email delivery request.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"` // Optional locale
	Data       map[string]interface{} `json:"data"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	fmt.Printf("Sending email task: To=%s, Template=%s\n", payload.To, payload.TemplateID)

	locale := payload.Locale
	if locale == "" {
		locale = "en-US"
	}

	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		// Non-retryable if template not found
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	// Simple placeholder replacement (replace {{.key}})
	subjectRendered := tmpl.Subject
	bodyRendered := tmpl.Body
	for key, val := range payload.Data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val)
		subjectRendered = strings.ReplaceAll(subjectRendered, placeholder, valueStr)
		bodyRendered = strings.ReplaceAll(bodyRendered, placeholder, valueStr)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	// Basic email structure with essential headers.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectRendered))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(bodyRendered)
	sb.WriteString("\r\n")

	rawMessage := []byte(sb.String())

	err = p.emailSender.Send(ctx, []string{payload.To}, subjectRendered, rawMessage)
	if err != nil {
		fmt.Printf("Email sending failed (will retry?): %v\n", err)
		return err
	}

	fmt.Printf("Email task processed successfully: To=%s, Template=%s\n", payload.To, payload.TemplateID)
	return nil
}

// ImageTaskPayload identifies an uploaded object to normalize. ListingID is
// set for listing images and empty for payment-proof artifacts, which are
// normalized in place without a database update.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id,omitempty"`
}

func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, ListingID=%s\n", payload.S3Key, payload.ListingID)

	// 1. Download image from S3
	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		log.Printf("Error getting object %s from S3: %v", payload.S3Key, err)
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		log.Printf("Error reading image object body for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("failed to read image data: %w", err)
	}

	// Check initial size before decoding (more efficient)
	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	// 2. Check dimensions
	maxWidth := uint(p.cfg.ImageMaxDimension)
	maxHeight := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxWidth || uint(img.Bounds().Dy()) > maxHeight

	processedImageKey := payload.S3Key
	var processedImageData []byte
	contentType := *getObjectOutput.ContentType

	// 3. Resize if needed
	if needsResize {
		log.Printf("Resizing image %s (original: %dx%d, max: %dx%d)", payload.S3Key, img.Bounds().Dx(), img.Bounds().Dy(), maxWidth, maxHeight)
		resizedImg := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
		var buf bytes.Buffer
		err = jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85})
		if err != nil {
			log.Printf("Error encoding resized image %s: %v", payload.S3Key, err)
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		processedImageData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

		if int64(len(processedImageData)) > maxSizeBytes {
			log.Printf("Resized image %s still exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(processedImageData), maxSizeBytes)
			return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
		}
	} else {
		processedImageData = imgData
	}

	// 4. Upload processed image (overwrite original)
	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(processedImageKey),
		Body:        bytes.NewReader(processedImageData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Printf("Error uploading processed image %s to S3: %v", processedImageKey, err)
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	// 5. Attach to listing, unless this was a proof artifact
	if payload.ListingID != "" {
		listingID, err := utils.ParseSixID(payload.ListingID)
		if err != nil {
			log.Printf("Invalid ListingID in image task payload: %s", payload.ListingID)
			return fmt.Errorf("invalid listing ID in payload: %w", asynq.SkipRetry)
		}
		if err := p.listingService.AddImageToListing(ctx, listingID, processedImageKey); err != nil {
			log.Printf("Error adding image key %s to listing %s: %v", processedImageKey, payload.ListingID, err)
			return fmt.Errorf("failed to update listing with processed image: %w", err)
		}
	}

	log.Printf("Image task processed successfully: Key=%s, ListingID=%s", processedImageKey, payload.ListingID)
	return nil
}

// HandlePaymentSweepTask expires stale activation payments and notifies the
// affected sellers. The sweep is the only writer of the expired status; this
// task just drives it on a schedule.
func (p *TaskProcessor) HandlePaymentSweepTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Starting payment expiry sweep...")

	swept, err := p.paymentService.SweepExpired(ctx)
	if err != nil {
		log.Printf("Error sweeping expired payments: %v", err)
		return err
	}

	for _, payment := range swept {
		seller, err := p.userService.FindByID(ctx, payment.SellerID)
		if err != nil {
			log.Printf("Error fetching seller %s for expiry notification: %v. Skipping.", payment.SellerID.String(), err)
			continue
		}
		listing, err := p.listingService.FindListingByID(ctx, payment.ListingID)
		if err != nil {
			log.Printf("Error fetching listing %s for expiry notification: %v. Skipping.", payment.ListingID.String(), err)
			continue
		}

		emailTask, err := NewEmailDeliveryTask(EmailTaskPayload{
			To:         seller.Email,
			TemplateID: "payment_expired",
			Data: map[string]interface{}{
				"listing_title": listing.Title,
			},
		})
		if err != nil {
			log.Printf("Error building expiry email task for payment %s: %v", payment.ID.String(), err)
			continue
		}
		if _, err := p.taskClient.EnqueueContext(ctx, emailTask); err != nil {
			log.Printf("ERROR failed to enqueue expiry email for payment %s: %v", payment.ID.String(), err)
		}
	}

	log.Printf("Payment expiry sweep finished. Expired %d payments.", len(swept))
	return nil
}
