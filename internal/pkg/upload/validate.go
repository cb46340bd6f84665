package upload

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxFileSize limits a single uploaded file to 25 MB.
const MaxFileSize = 25 * 1024 * 1024

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	// Note: SVG is intentionally excluded due to XSS risk without sanitization
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var pdfMagic = []byte("%PDF-")

// ValidateImageBySniff checks the provided filename (extension) and the first bytes (head)
// against a whitelist of image types. Returns detected mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", errors.New("only JPG, JPEG, PNG and WEBP images are supported")
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("invalid file type: HTML content is not allowed")
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		// Block SVG/XML until sanitizer is available
		return "", errors.New("SVG/XML files are not supported for security reasons")
	}

	if allowedMime[detected] {
		return detected, nil
	}

	return "", errors.New("the file type is not supported")
}

// ValidatePDFBySniff checks the filename extension and the leading bytes for a
// PDF signature. Returns detected mime or an error.
func ValidatePDFBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" {
		return "", errors.New("only PDF files are supported")
	}
	if !bytes.HasPrefix(head, pdfMagic) {
		return "", errors.New("the file does not look like a valid PDF")
	}
	return "application/pdf", nil
}
