package imagetools

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Supported output formats for image tools.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpg"
	FormatWebP = "webp"
)

const defaultJPEGQuality = 95

// ErrUnsupportedFormat is returned for output formats outside png/jpg/webp.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// NormalizeFormat maps user-supplied format strings to a canonical value,
// falling back to PNG the way the product always has.
func NormalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpg", "jpeg":
		return FormatJPEG
	case "webp":
		return FormatWebP
	default:
		return FormatPNG
	}
}

// Decode reads image bytes into memory, honoring EXIF orientation for JPEG
// input so later transforms operate on the upright pixels.
func Decode(data []byte) (image.Image, error) {
	if http.DetectContentType(data) == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, fmt.Errorf("webp decode failed: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	return applyOrientation(img, data), nil
}

// Encode writes an image in the requested canonical format. JPEG output gets
// a white background composited under any transparency.
func Encode(img image.Image, format string, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case FormatJPEG:
		if err := jpeg.Encode(&buf, flattenOnWhite(img), &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case FormatWebP:
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return nil, fmt.Errorf("error creating encoder options: %w", err)
		}
		if err := webp.Encode(&buf, img, options); err != nil {
			return nil, fmt.Errorf("error encoding WebP image: %w", err)
		}
	default:
		return nil, ErrUnsupportedFormat
	}
	return buf.Bytes(), nil
}

// Resize scales an image. With keepAspect, a single dimension of zero is
// derived from the other; with both set the image fits inside the bounds.
func Resize(img image.Image, width, height int, keepAspect bool) image.Image {
	if width <= 0 && height <= 0 {
		return img
	}
	if keepAspect {
		if width > 0 && height > 0 {
			return imaging.Fit(img, width, height, imaging.Lanczos)
		}
		// imaging derives the zero dimension from the aspect ratio.
		return imaging.Resize(img, width, height, imaging.Lanczos)
	}
	if width <= 0 {
		width = img.Bounds().Dx()
	}
	if height <= 0 {
		height = img.Bounds().Dy()
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Crop cuts the given rectangle out of the image.
func Crop(img image.Image, x, y, width, height int) (image.Image, error) {
	rect := image.Rect(x, y, x+width, y+height)
	if !rect.In(img.Bounds()) {
		return nil, fmt.Errorf("crop rectangle %v outside image bounds %v", rect, img.Bounds())
	}
	return imaging.Crop(img, rect), nil
}

// Convert re-encodes image bytes into the target format.
func Convert(data []byte, format string) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Encode(img, NormalizeFormat(format), 0)
}

// Compress re-encodes image bytes at a reduced quality. PNG input is
// re-encoded as lossy WebP unless a format override is given, since PNG has
// no quality dial worth exposing. Returns the bytes together with the format
// actually produced; callers must store and serve the result under that
// format.
func Compress(data []byte, format string, quality int) ([]byte, string, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	f := NormalizeFormat(format)
	if f == FormatPNG {
		f = FormatWebP
	}
	if quality <= 0 || quality > 100 {
		quality = 75
	}
	out, err := Encode(img, f, quality)
	if err != nil {
		return nil, "", err
	}
	return out, f, nil
}

func flattenOnWhite(img image.Image) image.Image {
	background := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}
