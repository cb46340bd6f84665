package apiv1

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/quicktoolshq/quicktools/app/controllers"
	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/codetools"
	"github.com/quicktoolshq/quicktools/internal/pkg/imagetools"
	"github.com/quicktoolshq/quicktools/internal/pkg/ledger"
	"github.com/quicktoolshq/quicktools/internal/pkg/pdftools"
	"github.com/quicktoolshq/quicktools/internal/pkg/upload"
	"github.com/quicktoolshq/quicktools/internal/pkg/usercontext"
)

// APIServer implements the programmatic API surface. Every tool call checks
// the credit balance up front, runs the transform, then charges the credit.
// No preview step exists here; API consumers always get the clean result.
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// GetUserProfile returns account information for the authenticated API caller.
func (s *APIServer) GetUserProfile(c *fiber.Ctx) error {
	return controllers.HandleGetAccount(c)
}

// PostRemoveBackground removes the image background and charges one credit.
func (s *APIServer) PostRemoveBackground(c *fiber.Ctx) error {
	started := time.Now()
	user, err := apiUser(c)
	if err != nil {
		return err
	}
	if !user.CanProcess() {
		return insufficientCredits(c)
	}

	filename, data, err := readImage(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Minute)
	defer cancel()
	out, err := controllers.BackgroundRemover().RemoveBackground(ctx, data)
	if err != nil {
		log.Errorf("api background removal failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "processing_failed", "message": "Background removal failed"})
	}

	return deliver(c, user.ID, controllers.ToolRemoveBackground, filename, imagetools.FormatPNG, int64(len(data)), out, started)
}

// PostResize scales an image and charges one credit.
func (s *APIServer) PostResize(c *fiber.Ctx) error {
	started := time.Now()
	user, err := apiUser(c)
	if err != nil {
		return err
	}
	if !user.CanProcess() {
		return insufficientCredits(c)
	}

	filename, data, err := readImage(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	width, _ := strconv.Atoi(c.FormValue("width", "0"))
	height, _ := strconv.Atoi(c.FormValue("height", "0"))
	if width <= 0 && height <= 0 {
		return badRequest(c, "width or height must be a positive integer")
	}
	keepAspect := c.FormValue("keep_aspect", "true") != "false"

	img, err := imagetools.Decode(data)
	if err != nil {
		return badRequest(c, err.Error())
	}

	format := imagetools.NormalizeFormat(c.FormValue("format"))
	out, err := imagetools.Encode(imagetools.Resize(img, width, height, keepAspect), format, 0)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return deliver(c, user.ID, controllers.ToolResize, filename, format, int64(len(data)), out, started)
}

// PostConvert transcodes an image and charges one credit.
func (s *APIServer) PostConvert(c *fiber.Ctx) error {
	started := time.Now()
	user, err := apiUser(c)
	if err != nil {
		return err
	}
	if !user.CanProcess() {
		return insufficientCredits(c)
	}

	filename, data, err := readImage(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	format := imagetools.NormalizeFormat(c.FormValue("format"))
	out, err := imagetools.Convert(data, format)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return deliver(c, user.ID, controllers.ToolConvert, filename, format, int64(len(data)), out, started)
}

// PostQR renders a QR code PNG and charges one credit.
func (s *APIServer) PostQR(c *fiber.Ctx) error {
	started := time.Now()
	user, err := apiUser(c)
	if err != nil {
		return err
	}
	if !user.CanProcess() {
		return insufficientCredits(c)
	}

	var req struct {
		Data     string `json:"data"`
		Size     int    `json:"size"`
		Recovery string `json:"recovery"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	out, err := codetools.GenerateQR(strings.TrimSpace(req.Data), req.Size, req.Recovery)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return deliver(c, user.ID, controllers.ToolQR, "", "png", int64(len(req.Data)), out, started)
}

// PostPDFMerge merges uploaded PDFs and charges one credit.
func (s *APIServer) PostPDFMerge(c *fiber.Ctx) error {
	started := time.Now()
	user, err := apiUser(c)
	if err != nil {
		return err
	}
	if !user.CanProcess() {
		return insufficientCredits(c)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "multipart form with PDF files is required")
	}
	files := form.File["files"]
	if len(files) < 2 {
		return badRequest(c, "merging needs at least two PDF files")
	}

	var inputs [][]byte
	var totalIn int64
	for _, fileHeader := range files {
		f, err := fileHeader.Open()
		if err != nil {
			return badRequest(c, "could not read "+fileHeader.Filename)
		}
		data, readErr := io.ReadAll(io.LimitReader(f, upload.MaxFileSize+1))
		f.Close()
		if readErr != nil {
			return badRequest(c, "could not read "+fileHeader.Filename)
		}
		if int64(len(data)) > upload.MaxFileSize {
			return badRequest(c, "file exceeds the 25 MB upload limit: "+fileHeader.Filename)
		}
		if _, err := upload.ValidatePDFBySniff(fileHeader.Filename, data); err != nil {
			return badRequest(c, err.Error())
		}
		totalIn += int64(len(data))
		inputs = append(inputs, data)
	}

	out, err := pdftools.Merge(inputs)
	if err != nil {
		return badRequest(c, err.Error())
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="merged.pdf"`)
	return deliver(c, user.ID, controllers.ToolPDFMerge, files[0].Filename, "pdf", totalIn, out, started)
}

func apiUser(c *fiber.Ctx) (*models.User, error) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
	}
	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "User lookup failed"})
	}
	return user, nil
}

func insufficientCredits(c *fiber.Ctx) error {
	return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "payment_required", "message": "Not enough credits, please top up"})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

func readImage(c *fiber.Ctx) (string, []byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", nil, errors.New("missing uploaded file: file")
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
	if _, err := upload.ValidateImageBySniff(fileHeader.Filename, data); err != nil {
		return "", nil, err
	}
	return fileHeader.Filename, data, nil
}

// deliver charges the credit, records usage and streams the result with the
// balance and timing headers set.
func deliver(c *fiber.Ctx, userID uint, tool, filename, format string, originalSize int64, out []byte, started time.Time) error {
	if err := controllers.Ledger().Spend(c.Context(), userID); err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			return insufficientCredits(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Charging the credit failed"})
	}

	controllers.RecordUsage(userID, tool, filename, "", format, originalSize, int64(len(out)), started)

	if snapshot, err := controllers.Ledger().GetSnapshot(c.Context(), userID); err == nil {
		c.Set("X-Credits-Remaining", strconv.Itoa(snapshot.CreditsBalance))
	}
	c.Set("X-Processing-Time-Ms", strconv.FormatInt(time.Since(started).Milliseconds(), 10))
	c.Set(fiber.HeaderContentType, contentType(format))
	return c.Send(out)
}

func contentType(format string) string {
	switch format {
	case imagetools.FormatJPEG:
		return "image/jpeg"
	case imagetools.FormatWebP:
		return "image/webp"
	case "pdf":
		return "application/pdf"
	default:
		return "image/png"
	}
}
