// Package ocr adapts OCR providers to the provider-neutral block graph in
// the domain package. Providers read page images that were already written
// to the object store.
package ocr

import (
	"context"

	"github.com/finners68/process-insurance/internal/domain"
)

type Provider interface {
	Name() string
	// DetectLines returns at least the LINE blocks found on the stored page.
	DetectLines(ctx context.Context, key string) ([]domain.Block, error)
	// AnalyzeForms returns the block graph including KEY_VALUE_SET and WORD
	// blocks linked by CHILD and VALUE relationships.
	AnalyzeForms(ctx context.Context, key string) ([]domain.Block, error)
}
