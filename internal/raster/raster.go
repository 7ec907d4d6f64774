// Package raster turns PDF bytes into PNG page images.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

var (
	ErrUnreadable = errors.New("document is not a readable PDF")
	ErrNoPages    = errors.New("document has no pages")
)

const DefaultDPI = 300

// PageFunc receives each page as it is rendered. The slice is not retained
// by the rasterizer. A non-nil error stops rendering and is returned as is.
type PageFunc func(index int, png []byte) error

type Rasterizer interface {
	// Rasterize renders up to maxPages pages in order; maxPages <= 0 means all.
	Rasterize(ctx context.Context, data []byte, maxPages int, fn PageFunc) error
}

type pdfRasterizer struct {
	dpi float64
	log *zap.Logger
}

func New(dpi float64, log *zap.Logger) Rasterizer {
	// validation only, pdfcpu must not create ~/.config/pdfcpu
	api.DisableConfigDir()
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &pdfRasterizer{dpi: dpi, log: log}
}

// PageCount validates the document structure and returns its page count.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return n, nil
}

func (r *pdfRasterizer) Rasterize(ctx context.Context, data []byte, maxPages int, fn PageFunc) error {
	if len(data) == 0 {
		return ErrUnreadable
	}

	pageCount, err := PageCount(data)
	if err != nil {
		return err
	}
	if pageCount == 0 {
		return ErrNoPages
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return ErrNoPages
	}
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := doc.ImagePNG(i, r.dpi)
		if err != nil {
			return fmt.Errorf("%w: page %d: %v", ErrUnreadable, i+1, err)
		}
		r.log.Debug("Page rasterized",
			zap.Int("page", i+1),
			zap.Int("pages", n),
			zap.Int("size", len(img)))
		if err := fn(i, img); err != nil {
			return err
		}
	}

	return nil
}
