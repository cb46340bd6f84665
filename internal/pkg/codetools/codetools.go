package codetools

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/ean"
	qrcode "github.com/skip2/go-qrcode"
)

// Barcode symbologies offered by the barcode tool.
const (
	SymbologyCode128 = "code128"
	SymbologyEAN     = "ean"
)

// ErrEmptyData is returned when there is nothing to encode.
var ErrEmptyData = errors.New("data to encode must not be empty")

const (
	defaultQRSize = 300
	minQRSize     = 64
	maxQRSize     = 2048
)

// GenerateQR encodes data as a PNG QR code. The recovery level letter
// follows the common L/M/Q/H convention, defaulting to M.
func GenerateQR(data string, size int, recovery string) ([]byte, error) {
	if strings.TrimSpace(data) == "" {
		return nil, ErrEmptyData
	}
	if size <= 0 {
		size = defaultQRSize
	}
	if size < minQRSize {
		size = minQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	level := qrcode.Medium
	switch strings.ToUpper(strings.TrimSpace(recovery)) {
	case "L":
		level = qrcode.Low
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	}

	return qrcode.Encode(data, level, size)
}

// GenerateBarcode renders data in the requested symbology as a PNG.
func GenerateBarcode(data, symbology string, width, height int) ([]byte, error) {
	if strings.TrimSpace(data) == "" {
		return nil, ErrEmptyData
	}
	if width <= 0 {
		width = 400
	}
	if height <= 0 {
		height = 120
	}

	var (
		code barcode.Barcode
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(symbology)) {
	case SymbologyEAN:
		code, err = ean.Encode(data)
	case SymbologyCode128, "":
		code, err = code128.Encode(data)
	default:
		return nil, fmt.Errorf("unsupported barcode symbology %q", symbology)
	}
	if err != nil {
		return nil, fmt.Errorf("barcode encoding failed: %w", err)
	}

	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, fmt.Errorf("barcode scaling failed: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
