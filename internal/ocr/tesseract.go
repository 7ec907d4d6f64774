package ocr

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"

	"github.com/finners68/process-insurance/internal/domain"
	"github.com/finners68/process-insurance/internal/repository"
)

// TesseractProvider runs OCR locally. It produces LINE and WORD blocks only,
// so form analysis never yields key-value pairs.
type TesseractProvider struct {
	store         repository.ObjectStore
	languages     []string
	dpi           int
	clientFactory func() *gosseract.Client
	log           *zap.Logger
}

func NewTesseractProvider(store repository.ObjectStore, languages []string, dpi int, log *zap.Logger) *TesseractProvider {
	return &TesseractProvider{
		store:         store,
		languages:     languages,
		dpi:           dpi,
		clientFactory: gosseract.NewClient,
		log:           log,
	}
}

func (p *TesseractProvider) Name() string { return "tesseract" }

func (p *TesseractProvider) DetectLines(ctx context.Context, key string) ([]domain.Block, error) {
	return p.recognize(ctx, key)
}

func (p *TesseractProvider) AnalyzeForms(ctx context.Context, key string) ([]domain.Block, error) {
	p.log.Debug("Tesseract has no form analysis, returning line blocks", zap.String("key", key))
	return p.recognize(ctx, key)
}

func (p *TesseractProvider) recognize(ctx context.Context, key string) ([]domain.Block, error) {
	rc, err := p.store.DownloadFile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := p.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(p.languages) > 0 {
		if err := c.SetLanguage(p.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if p.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(p.dpi)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}

	lines, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}
	words, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}

	return boxesToBlocks(lines, words), nil
}

// boxesToBlocks emits LINE blocks in reading order followed by WORD blocks;
// word-to-line containment is resolved by bounding box.
func boxesToBlocks(lines, words []gosseract.BoundingBox) []domain.Block {
	blocks := make([]domain.Block, 0, len(lines)+len(words))
	lineIdx := make([]int, 0, len(lines))

	for i, l := range lines {
		lineIdx = append(lineIdx, len(blocks))
		blocks = append(blocks, domain.Block{
			ID:   "line-" + strconv.Itoa(i),
			Type: domain.BlockTypeLine,
			Text: strings.TrimRight(l.Word, "\n "),
		})
	}

	for i, w := range words {
		id := "word-" + strconv.Itoa(i)
		blocks = append(blocks, domain.Block{
			ID:   id,
			Type: domain.BlockTypeWord,
			Text: w.Word,
		})
		for j, l := range lines {
			if w.Box.In(l.Box) {
				b := &blocks[lineIdx[j]]
				if len(b.Relationships) == 0 {
					b.Relationships = []domain.Relationship{{Type: domain.RelationshipChild}}
				}
				b.Relationships[0].IDs = append(b.Relationships[0].IDs, id)
				break
			}
		}
	}

	return blocks
}
