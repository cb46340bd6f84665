package controllers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quicktoolshq/quicktools/internal/pkg/artifacts"
	"github.com/quicktoolshq/quicktools/internal/pkg/entitlements"
	"github.com/quicktoolshq/quicktools/internal/pkg/imagetools"
)

// Tool identifiers stored in usage records.
const (
	ToolRemoveBackground = "remove-background"
	ToolWatermark        = "watermark"
	ToolFaceBlur         = "face-blur"
	ToolCrop             = "crop"
	ToolCompress         = "compress"
	ToolResize           = "resize"
	ToolConvert          = "convert"
	ToolQR               = "qr"
	ToolBarcode          = "barcode"
	ToolPDFMerge         = "pdf-merge"
	ToolPDFSplit         = "pdf-split"
	ToolPDFCompress      = "pdf-compress"
)

// HandleRemoveBackground cuts the background out of an uploaded image.
// The watermarked preview is free; downloading the clean result costs a credit.
func HandleRemoveBackground(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	filename, data, err := readUploadedImage(c, "file")
	if err != nil {
		return badRequest(c, err.Error())
	}

	InitServices()
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Minute)
	defer cancel()

	clean, err := bgRemover.RemoveBackground(ctx, data)
	if err != nil {
		return respondError(c, err)
	}

	// Background removal always yields PNG to keep transparency.
	return finishPreviewTransform(c, user.ID, ToolRemoveBackground, filename, imagetools.FormatPNG, data, clean, started)
}

// HandleWatermark tiles the caller's watermark text across the image.
func HandleWatermark(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	filename, data, err := readUploadedImage(c, "file")
	if err != nil {
		return badRequest(c, err.Error())
	}

	text := strings.TrimSpace(c.FormValue("text"))
	if text == "" {
		return badRequest(c, "watermark text is required")
	}

	img, err := imagetools.Decode(data)
	if err != nil {
		return respondError(c, err)
	}

	format := imagetools.NormalizeFormat(c.FormValue("format"))
	clean, err := imagetools.Encode(imagetools.Watermark(img, text), format, 0)
	if err != nil {
		return respondError(c, err)
	}

	return finishPreviewTransform(c, user.ID, ToolWatermark, filename, format, data, clean, started)
}

// HandleFaceBlur detects faces and blurs them.
func HandleFaceBlur(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	InitServices()
	if faceDetector == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Face blur is not available right now"})
	}

	filename, data, err := readUploadedImage(c, "file")
	if err != nil {
		return badRequest(c, err.Error())
	}

	img, err := imagetools.Decode(data)
	if err != nil {
		return respondError(c, err)
	}

	blurred, found := faceDetector.BlurFaces(img)
	format := imagetools.NormalizeFormat(c.FormValue("format"))
	clean, err := imagetools.Encode(blurred, format, 0)
	if err != nil {
		return respondError(c, err)
	}

	c.Set("X-Faces-Detected", strconv.Itoa(found))
	return finishPreviewTransform(c, user.ID, ToolFaceBlur, filename, format, data, clean, started)
}

// HandleCrop cuts a rectangle out of the uploaded image.
func HandleCrop(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	filename, data, err := readUploadedImage(c, "file")
	if err != nil {
		return badRequest(c, err.Error())
	}

	x, _ := strconv.Atoi(c.FormValue("x", "0"))
	y, _ := strconv.Atoi(c.FormValue("y", "0"))
	width, err := strconv.Atoi(c.FormValue("width"))
	if err != nil || width <= 0 {
		return badRequest(c, "width must be a positive integer")
	}
	height, err := strconv.Atoi(c.FormValue("height"))
	if err != nil || height <= 0 {
		return badRequest(c, "height must be a positive integer")
	}

	img, err := imagetools.Decode(data)
	if err != nil {
		return respondError(c, err)
	}

	cropped, err := imagetools.Crop(img, x, y, width, height)
	if err != nil {
		return badRequest(c, err.Error())
	}

	format := imagetools.NormalizeFormat(c.FormValue("format"))
	clean, err := imagetools.Encode(cropped, format, 0)
	if err != nil {
		return respondError(c, err)
	}

	return finishPreviewTransform(c, user.ID, ToolCrop, filename, format, data, clean, started)
}

// HandleCompress re-encodes the image at a lower quality to shrink it.
func HandleCompress(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	filename, data, err := readUploadedImage(c, "file")
	if err != nil {
		return badRequest(c, err.Error())
	}

	quality, _ := strconv.Atoi(c.FormValue("quality", "75"))

	clean, format, err := imagetools.Compress(data, c.FormValue("format"), quality)
	if err != nil {
		return respondError(c, err)
	}

	return finishPreviewTransform(c, user.ID, ToolCompress, filename, format, data, clean, started)
}

// HandleResize scales the image and charges one credit for the result.
func HandleResize(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireCredits(user); err != nil {
		return respondError(c, err)
	}

	filename, data, err := readUploadedImage(c, "file")
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
		return respondError(c, err)
	}

	format := imagetools.NormalizeFormat(c.FormValue("format"))
	out, err := imagetools.Encode(imagetools.Resize(img, width, height, keepAspect), format, 0)
	if err != nil {
		return respondError(c, err)
	}

	return finishDirectTransform(c, user.ID, ToolResize, filename, format, data, out, started)
}

// HandleConvert transcodes the image into another format and charges one credit.
func HandleConvert(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireCredits(user); err != nil {
		return respondError(c, err)
	}

	filename, data, err := readUploadedImage(c, "file")
	if err != nil {
		return badRequest(c, err.Error())
	}

	format := imagetools.NormalizeFormat(c.FormValue("format"))
	out, err := imagetools.Convert(data, format)
	if err != nil {
		return respondError(c, err)
	}

	return finishDirectTransform(c, user.ID, ToolConvert, filename, format, data, out, started)
}

// finishPreviewTransform stores the preview/clean pair, records usage and
// returns the artifact descriptor. No credit is charged at this point.
func finishPreviewTransform(c *fiber.Ctx, userID uint, tool, filename, format string, original, clean []byte, started time.Time) error {
	preview, err := watermarkPreview(clean, format)
	if err != nil {
		return respondError(c, err)
	}

	art, err := getArtifactStore().SavePair(c.Context(), userID, tool, format, filename, preview, clean)
	if err != nil {
		return respondError(c, err)
	}

	RecordUsage(userID, tool, filename, art.FileID, format, int64(len(original)), int64(len(clean)), started)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"file_id":      art.FileID,
		"tool":         tool,
		"state":        art.State,
		"preview_url":  "/api/v1/files/" + art.FileID + "/preview",
		"download_url": "/api/v1/files/" + art.FileID + "/download",
		"expires_at":   art.CreatedAt.Add(artifacts.TTL).UTC().Format(time.RFC3339),
	})
}

// finishDirectTransform charges one credit and streams the result back.
func finishDirectTransform(c *fiber.Ctx, userID uint, tool, filename, format string, original, out []byte, started time.Time) error {
	if err := getLedger().Spend(c.Context(), userID); err != nil {
		return respondError(c, err)
	}

	RecordUsage(userID, tool, filename, "", format, int64(len(original)), int64(len(out)), started)

	c.Set(fiber.HeaderContentType, contentTypeForFormat(format))
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+outputFilename(filename, tool, format)+`"`)
	return c.Send(out)
}

// watermarkPreview builds the free preview variant of a clean result.
func watermarkPreview(clean []byte, format string) ([]byte, error) {
	img, err := imagetools.Decode(clean)
	if err != nil {
		return nil, err
	}
	return imagetools.Encode(imagetools.Watermark(img, imagetools.DefaultWatermarkText), format, 0)
}

func contentTypeForFormat(format string) string {
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

func outputFilename(original, tool, format string) string {
	base := strings.TrimSuffix(original, "."+format)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	if base == "" {
		base = tool
	}
	return base + "_" + tool + "." + format
}
