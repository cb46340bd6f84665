package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateImageBySniff(t *testing.T) {
	pngHead := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	jpegHead := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}

	tests := []struct {
		name     string
		filename string
		head     []byte
		wantErr  bool
	}{
		{"valid png", "photo.png", pngHead, false},
		{"valid jpeg", "photo.jpg", jpegHead, false},
		{"extension not allowed", "vector.svg", pngHead, true},
		{"html masquerading as png", "page.png", []byte("<html><body>"), true},
		{"mime mismatch", "photo.png", []byte("plain text content here"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateImageBySniff(tt.filename, tt.head)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePDFBySniff(t *testing.T) {
	_, err := ValidatePDFBySniff("doc.pdf", []byte("%PDF-1.7\n"))
	assert.NoError(t, err)

	_, err = ValidatePDFBySniff("doc.txt", []byte("%PDF-1.7\n"))
	assert.Error(t, err)

	_, err = ValidatePDFBySniff("doc.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}
