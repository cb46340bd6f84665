package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quicktoolshq/quicktools/internal/pkg/codetools"
	"github.com/quicktoolshq/quicktools/internal/pkg/entitlements"
)

type qrRequest struct {
	Data     string `json:"data"`
	Size     int    `json:"size"`
	Recovery string `json:"recovery"`
}

type barcodeRequest struct {
	Data      string `json:"data"`
	Symbology string `json:"symbology"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// HandleGenerateQR renders a QR code PNG and charges one credit.
func HandleGenerateQR(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireCredits(user); err != nil {
		return respondError(c, err)
	}

	var req qrRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Data = strings.TrimSpace(req.Data)
	if req.Data == "" {
		return badRequest(c, "data to encode is required")
	}

	out, err := codetools.GenerateQR(req.Data, req.Size, req.Recovery)
	if err != nil {
		return respondError(c, err)
	}

	if err := getLedger().Spend(c.Context(), user.ID); err != nil {
		return respondError(c, err)
	}

	RecordUsage(user.ID, ToolQR, "", "", "png", int64(len(req.Data)), int64(len(out)), started)

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="qrcode.png"`)
	return c.Send(out)
}

// HandleGenerateBarcode renders a barcode PNG and charges one credit.
func HandleGenerateBarcode(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireCredits(user); err != nil {
		return respondError(c, err)
	}

	var req barcodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Data = strings.TrimSpace(req.Data)
	if req.Data == "" {
		return badRequest(c, "data to encode is required")
	}

	out, err := codetools.GenerateBarcode(req.Data, req.Symbology, req.Width, req.Height)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := getLedger().Spend(c.Context(), user.ID); err != nil {
		return respondError(c, err)
	}

	RecordUsage(user.ID, ToolBarcode, "", "", "png", int64(len(req.Data)), int64(len(out)), started)

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="barcode_`+sanitizeSymbology(req.Symbology)+`.png"`)
	return c.Send(out)
}

func sanitizeSymbology(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "code128"
	}
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
