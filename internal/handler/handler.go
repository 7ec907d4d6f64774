package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/finners68/process-insurance/internal/domain"
	"github.com/finners68/process-insurance/internal/service"
)

type Handler struct {
	service service.DocumentService
	log     *zap.Logger
}

func NewHandler(service service.DocumentService, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// Process returns a handler running the pipeline p. The response shape
// follows the pipeline's mode: {fields}, {rawText} or {structured_fields, rawText}.
func (h *Handler) Process(p service.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.log.Info("Received processing request",
			zap.String("path", c.FullPath()),
			zap.String("mode", p.Mode.String()))

		var req domain.UploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var (
				verrs  validator.ValidationErrors
				tooBig *http.MaxBytesError
			)
			if errors.As(err, &tooBig) {
				h.fail(c, domain.NewError(domain.KindPayloadTooLarge, "bind", domain.MsgTooLarge, err))
				return
			}
			if errors.As(err, &verrs) {
				h.fail(c, domain.NewError(domain.KindMissingField, "bind", domain.MsgMissingField, err))
				return
			}
			h.fail(c, domain.NewError(domain.KindMissingField, "bind", domain.MsgInvalidJSON, err))
			return
		}

		result, err := h.service.Process(c.Request.Context(), req, p)
		if err != nil {
			h.fail(c, err)
			return
		}

		h.log.Info("Processing complete",
			zap.String("filename", req.Filename),
			zap.Int("pages", result.Pages),
			zap.Int("fields", len(result.Fields)))

		c.JSON(http.StatusOK, render(result, p.Mode))
	}
}

func render(result *domain.ExtractionResult, mode service.OCRMode) gin.H {
	switch mode {
	case service.ModeForms:
		return gin.H{"fields": result.Fields}
	case service.ModeBoth:
		return gin.H{"structured_fields": result.Fields, "rawText": result.RawText}
	default:
		return gin.H{"rawText": result.RawText}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(domain.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		h.log.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": domain.MessageOf(err)})
}

func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindMissingField, domain.KindInvalidEncoding, domain.KindUnreadableDocument:
		return http.StatusBadRequest
	case domain.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.KindAuthFailure:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
