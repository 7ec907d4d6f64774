package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/finners68/process-insurance/internal/config"
	"github.com/finners68/process-insurance/internal/domain"
	"github.com/finners68/process-insurance/internal/handler"
	"github.com/finners68/process-insurance/internal/server"
	"github.com/finners68/process-insurance/internal/service"
)

type fakeService struct {
	calls    []service.Pipeline
	requests []domain.UploadRequest
	result   *domain.ExtractionResult
	err      error
	panic    bool
}

func (f *fakeService) Process(_ context.Context, req domain.UploadRequest, p service.Pipeline) (*domain.ExtractionResult, error) {
	f.calls = append(f.calls, p)
	f.requests = append(f.requests, req)
	if f.panic {
		panic("unexpected")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testConfig(combinedForms bool) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxBodyBytes: 1 << 20},
		App: config.AppConfig{
			APIKey:        "s3cret",
			APIKeyHeader:  "X-Api-Key",
			CombinedForms: combinedForms,
		},
	}
}

func newRouter(t *testing.T, svc service.DocumentService, combinedForms bool) http.Handler {
	t.Helper()
	log := zaptest.NewLogger(t)
	return server.NewRouter(handler.NewHandler(svc, log), testConfig(combinedForms), log)
}

func do(t *testing.T, h http.Handler, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

const validBody = `{"file": "JVBERi0=", "filename": "claim.pdf"}`

func TestProcessInsuranceFields(t *testing.T) {
	svc := &fakeService{result: &domain.ExtractionResult{Fields: map[string]string{"Name": "John Doe"}, Pages: 1}}
	h := newRouter(t, svc, false)

	w, out := do(t, h, "/process-insurance", validBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"fields": map[string]any{"Name": "John Doe"}}, out)
	require.Len(t, svc.calls, 1)
	assert.Equal(t, service.Pipeline{Pages: service.PagesFirst, Mode: service.ModeForms}, svc.calls[0])
	assert.Equal(t, "claim.pdf", svc.requests[0].Filename)
}

func TestMissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing filename", body: `{"file": "JVBERi0="}`},
		{name: "missing file", body: `{"filename": "a.pdf"}`},
		{name: "null file", body: `{"file": null, "filename": "a.pdf"}`},
		{name: "empty object", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			h := newRouter(t, svc, false)

			w, out := do(t, h, "/process-insurance", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.True(t, strings.HasPrefix(out["error"].(string), "Missing 'file' or 'filename'"))
			assert.Empty(t, svc.calls)
		})
	}
}

func TestMalformedJSON(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(t, svc, false)

	w, out := do(t, h, "/process-insurance", `[1, 2`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.MsgInvalidJSON, out["error"])
	assert.Empty(t, svc.calls)
}

func TestCombinedRequiresAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "absent", headers: nil},
		{name: "wrong", headers: map[string]string{"X-Api-Key": "nope"}},
		{name: "prefix", headers: map[string]string{"X-Api-Key": "s3cre"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			h := newRouter(t, svc, false)

			w, out := do(t, h, "/process-insurance-combined", `not even json`, tt.headers)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, map[string]any{"error": "Invalid or missing API key"}, out)
			assert.Empty(t, svc.calls)
		})
	}
}

func TestCombinedRawText(t *testing.T) {
	svc := &fakeService{result: &domain.ExtractionResult{RawText: "A\nB\n\nC", Pages: 2}}
	h := newRouter(t, svc, false)

	w, out := do(t, h, "/process-insurance-combined", validBody, map[string]string{"X-Api-Key": "s3cret"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"rawText": "A\nB\n\nC"}, out)
	require.Len(t, svc.calls, 1)
	assert.Equal(t, service.PagesAll, svc.calls[0].Pages)
	assert.Equal(t, service.ModeLines, svc.calls[0].Mode)
}

func TestCombinedWithForms(t *testing.T) {
	svc := &fakeService{result: &domain.ExtractionResult{
		Fields:  map[string]string{"Policy": "42"},
		RawText: "Policy 42",
		Pages:   1,
	}}
	h := newRouter(t, svc, true)

	w, out := do(t, h, "/process-insurance-combined", validBody, map[string]string{"X-Api-Key": "s3cret"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"structured_fields": map[string]any{"Policy": "42"},
		"rawText":           "Policy 42",
	}, out)
	assert.Equal(t, service.Pipeline{Pages: service.PagesAll, Mode: service.ModeBoth, FormsFirstPageOnly: true}, svc.calls[0])
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		kind   domain.ErrorKind
		msg    string
		status int
	}{
		{kind: domain.KindInvalidEncoding, msg: domain.MsgInvalidEncoding, status: http.StatusBadRequest},
		{kind: domain.KindUnreadableDocument, msg: domain.MsgNoPages, status: http.StatusBadRequest},
		{kind: domain.KindStorageFailure, msg: domain.MsgUpload, status: http.StatusInternalServerError},
		{kind: domain.KindOCRFailure, msg: domain.MsgTextOCR, status: http.StatusInternalServerError},
		{kind: domain.KindInternal, msg: domain.MsgInternal, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			svc := &fakeService{err: domain.NewError(tt.kind, "op", tt.msg, assert.AnError)}
			h := newRouter(t, svc, false)

			w, out := do(t, h, "/process-insurance", validBody, nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, map[string]any{"error": tt.msg}, out)
		})
	}
}

func TestPanicBecomesInternalError(t *testing.T) {
	svc := &fakeService{panic: true}
	h := newRouter(t, svc, false)

	w, out := do(t, h, "/process-insurance", validBody, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]any{"error": "Internal server error"}, out)
}

func TestBodyLimit(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(t, svc, false)

	body := `{"file": "` + strings.Repeat("A", 2<<20) + `", "filename": "big.pdf"}`
	w, out := do(t, h, "/process-insurance", body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, map[string]any{"error": domain.MsgTooLarge}, out)
	assert.Empty(t, svc.calls)
}

func TestHealthCheck(t *testing.T) {
	h := newRouter(t, &fakeService{}, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "OK"}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, handler.StatusFor(domain.KindAuthFailure))
	assert.Equal(t, http.StatusBadRequest, handler.StatusFor(domain.KindMissingField))
	assert.Equal(t, http.StatusRequestEntityTooLarge, handler.StatusFor(domain.KindPayloadTooLarge))
	assert.Equal(t, http.StatusInternalServerError, handler.StatusFor("unknown"))
}
