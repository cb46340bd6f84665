package imagetools

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultWatermarkText marks free preview artifacts.
const DefaultWatermarkText = "PREVIEW"

const watermarkAngle = 25.0

// Watermark tiles semi-transparent diagonal text across the whole image.
// Previews are always produced through this; the clean artifact never is.
func Watermark(img image.Image, text string) image.Image {
	if text == "" {
		text = DefaultWatermarkText
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Render the tiled text small, then scale the overlay up so the marks
	// stay proportional to the image. basicfont glyphs are 7x13.
	face := basicfont.Face7x13
	textWidth := len(text) * 7
	scale := max(min(width, height)/(15*13), 1)

	tileW := (width / scale) + textWidth*2
	tileH := (height / scale) + 13*2
	overlay := image.NewNRGBA(image.Rect(0, 0, tileW, tileH))
	drawer := &font.Drawer{
		Dst:  overlay,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 60}),
		Face: face,
	}

	for y := 13; y < tileH; y += 13 * 3 {
		for x := 0; x < tileW; x += textWidth * 2 {
			drawer.Dot = fixed.P(x, y)
			drawer.DrawString(text)
		}
	}

	scaled := imaging.Resize(overlay, tileW*scale, tileH*scale, imaging.Linear)
	rotated := imaging.Rotate(scaled, watermarkAngle, color.NRGBA{})
	centered := imaging.CropCenter(rotated, width, height)

	return imaging.Overlay(img, centered, image.Pt(0, 0), 1.0)
}
