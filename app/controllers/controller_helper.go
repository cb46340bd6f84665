package controllers

import (
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/artifacts"
	"github.com/quicktoolshq/quicktools/internal/pkg/codetools"
	"github.com/quicktoolshq/quicktools/internal/pkg/entitlements"
	"github.com/quicktoolshq/quicktools/internal/pkg/imagetools"
	"github.com/quicktoolshq/quicktools/internal/pkg/ledger"
	"github.com/quicktoolshq/quicktools/internal/pkg/pdftools"
	"github.com/quicktoolshq/quicktools/internal/pkg/upload"
	"github.com/quicktoolshq/quicktools/internal/pkg/usercontext"
)

// respondError maps domain errors onto the JSON error envelope.
func respondError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := "error"
		switch fiberErr.Code {
		case fiber.StatusUnauthorized:
			code = "unauthorized"
		case fiber.StatusForbidden:
			code = "forbidden"
		case fiber.StatusNotFound:
			code = "not_found"
		case fiber.StatusBadRequest:
			code = "bad_request"
		}
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": code, "message": fiberErr.Message})
	}

	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "payment_required", "message": "Not enough credits, please top up"})
	case errors.Is(err, entitlements.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "API access requires the Pro or Business credit pack"})
	case errors.Is(err, artifacts.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "The requested resource does not exist or has expired"})
	case errors.Is(err, imagetools.ErrUnsupportedFormat),
		errors.Is(err, codetools.ErrEmptyData),
		errors.Is(err, pdftools.ErrNoInput),
		errors.Is(err, ledger.ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	default:
		log.Errorf("unhandled controller error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Something went wrong"})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

// currentUser loads the full user record for the authenticated request.
func currentUser(c *fiber.Ctx) (*models.User, error) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Missing or invalid authentication")
	}
	return repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
}

// readUploadedFile pulls one multipart file from the request, enforcing the
// upload size limit. Returns the original filename and raw bytes.
func readUploadedFile(c *fiber.Ctx, field string) (string, []byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return "", nil, errors.New("missing uploaded file: " + field)
	}
	if fileHeader.Size > upload.MaxFileSize {
		return "", nil, errors.New("file exceeds the 25 MB upload limit")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, upload.MaxFileSize+1))
	if err != nil {
		return "", nil, err
	}
	if int64(len(data)) > upload.MaxFileSize {
		return "", nil, errors.New("file exceeds the 25 MB upload limit")
	}
	return fileHeader.Filename, data, nil
}

// readUploadedImage reads and content-sniffs one image upload.
func readUploadedImage(c *fiber.Ctx, field string) (string, []byte, error) {
	filename, data, err := readUploadedFile(c, field)
	if err != nil {
		return "", nil, err
	}
	if _, err := upload.ValidateImageBySniff(filename, head(data)); err != nil {
		return "", nil, err
	}
	return filename, data, nil
}

// readUploadedPDF reads and content-sniffs one PDF upload.
func readUploadedPDF(c *fiber.Ctx, field string) (string, []byte, error) {
	filename, data, err := readUploadedFile(c, field)
	if err != nil {
		return "", nil, err
	}
	if _, err := upload.ValidatePDFBySniff(filename, head(data)); err != nil {
		return "", nil, err
	}
	return filename, data, nil
}

func head(data []byte) []byte {
	if len(data) > 512 {
		return data[:512]
	}
	return data
}

// RecordUsage appends the usage record for a completed transform.
// Usage is tracked at transform time; downloads are charged separately.
func RecordUsage(userID uint, tool, originalFilename, fileID, outputFormat string, originalSize, outputSize int64, started time.Time) {
	record := &models.UsageRecord{
		UserID:           userID,
		Tool:             tool,
		OriginalFilename: originalFilename,
		FileID:           fileID,
		OutputFormat:     outputFormat,
		OriginalSize:     originalSize,
		OutputSize:       outputSize,
		ProcessingMs:     time.Since(started).Milliseconds(),
	}
	if err := repository.GetGlobalFactory().GetUsageRecordRepository().Create(record); err != nil {
		log.Errorf("failed to record usage for user %d tool %s: %v", userID, tool, err)
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
