package faceblur

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/quicktoolshq/quicktools/internal/pkg/env"
)

const (
	minFaceSize     = 20
	maxFaceSize     = 2000
	shiftFactor     = 0.1
	scaleFactor     = 1.1
	qualityThresh   = 5.0
	clusterOverlap  = 0.2
	defaultBlurSigm = 12.0
)

// ErrNoCascade indicates the face cascade file is missing or unreadable.
var ErrNoCascade = errors.New("face detection cascade not available")

// Detector finds faces via a pigo cascade and blurs the detected regions.
type Detector struct {
	classifier *pigo.Pigo
}

// NewDetector loads the cascade from FACE_CASCADE_PATH.
func NewDetector() (*Detector, error) {
	path := env.GetEnv("FACE_CASCADE_PATH", "./cascade/facefinder")
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCascade, err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking cascade failed: %w", err)
	}
	return &Detector{classifier: classifier}, nil
}

// BlurFaces detects faces and returns the image with every detection
// gaussian-blurred. Images without detections pass through unchanged.
func (d *Detector) BlurFaces(img image.Image) (image.Image, int) {
	src := pigo.ImgToNRGBA(img)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()

	params := pigo.CascadeParams{
		MinSize:     minFaceSize,
		MaxSize:     maxFaceSize,
		ShiftFactor: shiftFactor,
		ScaleFactor: scaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, clusterOverlap)

	out := imaging.Clone(img)
	blurred := 0
	for _, det := range dets {
		if det.Q < qualityThresh {
			continue
		}
		rect := image.Rect(
			det.Col-det.Scale/2,
			det.Row-det.Scale/2,
			det.Col+det.Scale/2,
			det.Row+det.Scale/2,
		).Intersect(out.Bounds())
		if rect.Empty() {
			continue
		}
		out = BlurRegion(out, rect)
		blurred++
	}
	return out, blurred
}

// BlurRegion gaussian-blurs one rectangle of the image in place.
func BlurRegion(img *image.NRGBA, rect image.Rectangle) *image.NRGBA {
	region := imaging.Crop(img, rect)
	region = imaging.Blur(region, defaultBlurSigm)
	return imaging.Paste(img, region, rect.Min)
}
