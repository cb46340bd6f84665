package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		original string
		tool     string
		format   string
		want     string
	}{
		{
			name:     "extension is replaced with target format",
			original: "photo.jpg",
			tool:     ToolResize,
			format:   "png",
			want:     "photo_resize.png",
		},
		{
			name:     "same-format conversion keeps the base name",
			original: "photo.png",
			tool:     ToolConvert,
			format:   "png",
			want:     "photo_convert.png",
		},
		{
			name:     "missing extension still produces a suffix",
			original: "scan",
			tool:     ToolCompress,
			format:   "jpg",
			want:     "scan_compress.jpg",
		},
		{
			name:     "empty filename falls back to the tool name",
			original: "",
			tool:     ToolConvert,
			format:   "webp",
			want:     "convert_convert.webp",
		},
		{
			name:     "dotfiles keep their name",
			original: ".hidden",
			tool:     ToolResize,
			format:   "png",
			want:     ".hidden_resize.png",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, outputFilename(tc.original, tc.tool, tc.format))
		})
	}
}

func TestContentTypeForFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", contentTypeForFormat("jpg"))
	assert.Equal(t, "image/webp", contentTypeForFormat("webp"))
	assert.Equal(t, "application/pdf", contentTypeForFormat("pdf"))
	assert.Equal(t, "image/png", contentTypeForFormat("png"))
	assert.Equal(t, "image/png", contentTypeForFormat("unknown"))
}
