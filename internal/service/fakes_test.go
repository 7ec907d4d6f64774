package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/finners68/process-insurance/internal/domain"
	"github.com/finners68/process-insurance/internal/raster"
)

type fakeStore struct {
	objects   map[string][]byte
	uploads   []string
	deletes   []string
	uploadErr map[int]error // by 1-based upload call
	deleteErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Bucket() string { return "test-bucket" }

func (f *fakeStore) UploadFile(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	if contentType != "image/png" {
		return fmt.Errorf("unexpected content type %q", contentType)
	}
	if err := f.uploadErr[len(f.uploads)+1]; err != nil {
		f.uploads = append(f.uploads, key)
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads = append(f.uploads, key)
	f.objects[key] = data
	return nil
}

func (f *fakeStore) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) DeleteFile(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	if err := f.deleteErr[key]; err != nil {
		return err
	}
	delete(f.objects, key)
	return nil
}

// fakeProvider answers with LINE blocks holding the page's lines, and a
// single key-value pair "Page" -> key when analyzing forms.
type fakeProvider struct {
	lines      map[string][]string
	detected   []string
	analyzed   []string
	failDetect map[int]error // by 1-based call
	failForms  error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) DetectLines(_ context.Context, key string) ([]domain.Block, error) {
	f.detected = append(f.detected, key)
	if err := f.failDetect[len(f.detected)]; err != nil {
		return nil, err
	}
	var blocks []domain.Block
	for i, l := range f.linesFor(key) {
		blocks = append(blocks, domain.Block{ID: fmt.Sprintf("l%d", i), Type: domain.BlockTypeLine, Text: l})
	}
	return blocks, nil
}

func (f *fakeProvider) linesFor(key string) []string {
	for prefix, lines := range f.lines {
		if strings.Contains(key, prefix) {
			return lines
		}
	}
	return nil
}

func (f *fakeProvider) AnalyzeForms(_ context.Context, key string) ([]domain.Block, error) {
	f.analyzed = append(f.analyzed, key)
	if f.failForms != nil {
		return nil, f.failForms
	}
	return []domain.Block{
		{
			ID:          "k",
			Type:        domain.BlockTypeKeyValueSet,
			EntityTypes: []domain.EntityType{domain.EntityTypeKey},
			Relationships: []domain.Relationship{
				{Type: domain.RelationshipChild, IDs: []string{"kw"}},
				{Type: domain.RelationshipValue, IDs: []string{"v"}},
			},
		},
		{ID: "kw", Type: domain.BlockTypeWord, Text: "Page"},
		{
			ID:            "v",
			Type:          domain.BlockTypeKeyValueSet,
			EntityTypes:   []domain.EntityType{domain.EntityTypeValue},
			Relationships: []domain.Relationship{{Type: domain.RelationshipChild, IDs: []string{"vw"}}},
		},
		{ID: "vw", Type: domain.BlockTypeWord, Text: key},
	}, nil
}

type fakeRasterizer struct {
	pages    int
	err      error
	failAt   int // 1-based page whose render fails with err; 0 fails before any page
	maxPages int
	called   bool
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ []byte, maxPages int, fn raster.PageFunc) error {
	f.called = true
	f.maxPages = maxPages
	if f.err != nil && f.failAt == 0 {
		return f.err
	}
	n := f.pages
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}
	for i := 0; i < n; i++ {
		if f.err != nil && f.failAt == i+1 {
			return f.err
		}
		if err := fn(i, []byte(fmt.Sprintf("png-%d", i+1))); err != nil {
			return err
		}
	}
	return nil
}

type rasterizerFunc func(ctx context.Context, data []byte, maxPages int, fn raster.PageFunc) error

func (f rasterizerFunc) Rasterize(ctx context.Context, data []byte, maxPages int, fn raster.PageFunc) error {
	return f(ctx, data, maxPages, fn)
}
