package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finners68/process-insurance/internal/domain"
	"github.com/finners68/process-insurance/internal/ocr"
	"github.com/finners68/process-insurance/internal/raster"
	"github.com/finners68/process-insurance/internal/repository"
	"github.com/finners68/process-insurance/pkg/utils"
)

type PageScope int

const (
	PagesFirst PageScope = iota
	PagesAll
)

type OCRMode int

const (
	ModeLines OCRMode = iota
	ModeForms
	ModeBoth
)

func (m OCRMode) Lines() bool { return m == ModeLines || m == ModeBoth }
func (m OCRMode) Forms() bool { return m == ModeForms || m == ModeBoth }

func (m OCRMode) String() string {
	switch m {
	case ModeLines:
		return "lines"
	case ModeForms:
		return "forms"
	case ModeBoth:
		return "both"
	}
	return "unknown"
}

// Pipeline selects which variant of the processing flow a route runs.
type Pipeline struct {
	Pages PageScope
	Mode  OCRMode
	// FormsFirstPageOnly limits form analysis to page 1 when Mode includes forms.
	FormsFirstPageOnly bool
}

type DocumentService interface {
	Process(ctx context.Context, req domain.UploadRequest, p Pipeline) (*domain.ExtractionResult, error)
}

type documentService struct {
	store         repository.ObjectStore
	provider      ocr.Provider
	rasterizer    raster.Rasterizer
	proc          *utils.ImageProcessor
	maxImageBytes int64
	log           *zap.Logger
	newToken      func() string
}

func NewDocumentService(store repository.ObjectStore, provider ocr.Provider, rasterizer raster.Rasterizer, maxImageBytes int64, log *zap.Logger) DocumentService {
	return &documentService{
		store:         store,
		provider:      provider,
		rasterizer:    rasterizer,
		proc:          utils.NewImageProcessor(log),
		maxImageBytes: maxImageBytes,
		log:           log,
		newToken:      uuid.NewString,
	}
}

func (s *documentService) Process(ctx context.Context, req domain.UploadRequest, p Pipeline) (*domain.ExtractionResult, error) {
	if req.File == "" || req.Filename == "" {
		return nil, domain.NewError(domain.KindMissingField, "validate", domain.MsgMissingField, nil)
	}

	data, err := decodeBase64(req.File)
	if err != nil {
		s.log.Error("Failed to decode base64", zap.Error(err))
		return nil, domain.NewError(domain.KindInvalidEncoding, "decode", domain.MsgInvalidEncoding, err)
	}
	s.log.Info("Decoded file", zap.String("filename", req.Filename), zap.Int("size", len(data)))

	uploads := NewUploads(s.store, s.log)
	defer func() {
		// failures are logged inside Release and never alter the response
		_ = uploads.Release(ctx)
	}()

	pages, err := s.uploadPages(ctx, uploads, data, FilenameStem(req.Filename), p)
	if err != nil {
		return nil, err
	}

	return s.recognize(ctx, uploads, pages, p)
}

// uploadPages renders the document and stores each page as soon as it is
// rendered, so only one page image is held in memory at a time.
func (s *documentService) uploadPages(ctx context.Context, uploads *Uploads, data []byte, stem string, p Pipeline) ([]domain.PageImage, error) {
	maxPages := 0
	if p.Pages == PagesFirst {
		maxPages = 1
	}

	var pages []domain.PageImage
	err := s.rasterizer.Rasterize(ctx, data, maxPages, func(i int, img []byte) error {
		fitted, err := s.proc.FitPNG(img, s.maxImageBytes)
		if err != nil {
			s.log.Error("Page image exceeds size limit", zap.Int("page", i+1), zap.Error(err))
			return domain.NewError(domain.KindUnreadableDocument, "fit", domain.MsgUnreadable, err)
		}

		pageNumber := 0
		if p.Pages == PagesAll {
			pageNumber = i + 1
		}
		key := StorageKey(stem, pageNumber, s.newToken())

		if err := uploads.Upload(ctx, key, fitted); err != nil {
			return domain.NewError(domain.KindStorageFailure, "upload", domain.MsgUpload, err)
		}
		s.log.Info("Uploaded page", zap.Int("page", i+1), zap.String("key", key))

		pages = append(pages, domain.PageImage{PageIndex: i, StorageKey: key})
		return nil
	})
	if err != nil {
		return nil, rasterError(s.log, err)
	}
	return pages, nil
}

// rasterError passes through errors already classified by the page callback
// and maps the rasterizer's own failures.
func rasterError(log *zap.Logger, err error) error {
	var pe *domain.ProcessError
	if errors.As(err, &pe) {
		return err
	}
	log.Error("PDF flattening failed", zap.Error(err))
	switch {
	case errors.Is(err, raster.ErrNoPages):
		return domain.NewError(domain.KindUnreadableDocument, "rasterize", domain.MsgNoPages, err)
	case errors.Is(err, raster.ErrUnreadable):
		return domain.NewError(domain.KindUnreadableDocument, "rasterize", domain.MsgUnreadable, err)
	default:
		return domain.NewError(domain.KindInternal, "rasterize", domain.MsgInternal, err)
	}
}

func (s *documentService) recognize(ctx context.Context, uploads *Uploads, pages []domain.PageImage, p Pipeline) (*domain.ExtractionResult, error) {
	result := &domain.ExtractionResult{Pages: len(pages)}
	if p.Mode.Forms() {
		result.Fields = make(map[string]string)
	}

	var texts []string
	for _, page := range pages {
		lines, fields, err := s.recognizePage(ctx, page, p)

		if derr := uploads.Delete(ctx, page.StorageKey); derr != nil {
			s.log.Warn("Failed to delete page object", zap.String("key", page.StorageKey), zap.Error(derr))
		} else {
			s.log.Info("Deleted page object after processing", zap.String("key", page.StorageKey))
		}

		if err != nil {
			return nil, err
		}

		if p.Mode.Lines() {
			texts = append(texts, lines)
		}
		for k, v := range fields {
			result.Fields[k] = v
		}
	}

	result.RawText = CombinePages(texts)
	return result, nil
}

func (s *documentService) recognizePage(ctx context.Context, page domain.PageImage, p Pipeline) (string, map[string]string, error) {
	var (
		lines  string
		fields map[string]string
	)

	if p.Mode.Lines() {
		blocks, err := s.provider.DetectLines(ctx, page.StorageKey)
		if err != nil {
			s.log.Error("Text detection failed",
				zap.String("provider", s.provider.Name()),
				zap.String("key", page.StorageKey),
				zap.Error(err))
			return "", nil, domain.NewError(domain.KindOCRFailure, "detect", domain.MsgTextOCR, err)
		}
		lines = LineText(blocks)
	}

	if p.Mode.Forms() && (page.PageIndex == 0 || !p.FormsFirstPageOnly) {
		blocks, err := s.provider.AnalyzeForms(ctx, page.StorageKey)
		if err != nil {
			s.log.Error("Document analysis failed",
				zap.String("provider", s.provider.Name()),
				zap.String("key", page.StorageKey),
				zap.Error(err))
			return "", nil, domain.NewError(domain.KindOCRFailure, "analyze", domain.MsgFormAnalysis, err)
		}
		fields = KeyValues(blocks)
	}

	s.log.Info("OCR complete",
		zap.Int("page", page.PageIndex+1),
		zap.String("mode", p.Mode.String()),
		zap.String("key", page.StorageKey))

	return lines, fields, nil
}

// decodeBase64 ignores embedded whitespace, which clients often insert when
// wrapping long payloads.
func decodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(cleaned)
}
