package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const maxFitAttempts = 5

type ImageProcessor struct {
	log *zap.Logger
}

func NewImageProcessor(log *zap.Logger) *ImageProcessor {
	return &ImageProcessor{log: log}
}

// FitPNG returns data unchanged when it is within maxBytes. Otherwise the
// image is re-encoded with best compression and, if still too large,
// downscaled until it fits.
func (p *ImageProcessor) FitPNG(data []byte, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 || int64(len(data)) <= maxBytes {
		return data, nil
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}

	out, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	for attempt := 0; int64(len(out)) > maxBytes; attempt++ {
		if attempt == maxFitAttempts {
			return nil, fmt.Errorf("image still %d bytes after %d downscales, limit %d", len(out), attempt, maxBytes)
		}
		// area scales with the square of the side
		scale := math.Sqrt(float64(maxBytes)/float64(len(out))) * 0.95
		img = Scale(img, scale)
		if out, err = encodePNG(img); err != nil {
			return nil, err
		}
	}

	p.log.Info("Image resized to fit size limit",
		zap.Int("original_size", len(data)),
		zap.Int("size", len(out)),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	return out, nil
}

// Scale resizes img by factor, never below 1x1.
func Scale(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	w := int(math.Max(1, math.Round(float64(b.Dx())*factor)))
	h := int(math.Max(1, math.Round(float64(b.Dy())*factor)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
