package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finners68/process-insurance/internal/awscfg"
	"github.com/finners68/process-insurance/internal/config"
	"github.com/finners68/process-insurance/internal/handler"
	"github.com/finners68/process-insurance/internal/ocr"
	"github.com/finners68/process-insurance/internal/raster"
	"github.com/finners68/process-insurance/internal/repository"
	"github.com/finners68/process-insurance/internal/service"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	store, provider, err := newBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	docService := service.NewDocumentService(
		store,
		provider,
		raster.New(cfg.App.RasterDPI, log),
		cfg.App.MaxImageBytes,
		log,
	)

	h := handler.NewHandler(docService, log)

	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           NewRouter(h, cfg, log),
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.App.StorageBackend),
		zap.String("ocr", provider.Name()))

	return server, nil
}

// NewRouter wires the routes. Each endpoint is one Pipeline instance.
func NewRouter(h *handler.Handler, cfg *config.Config, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(handler.RequestLogger(log), handler.Recovery(log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", cfg.App.APIKeyHeader},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health", h.HealthCheck)

	combined := service.Pipeline{Pages: service.PagesAll, Mode: service.ModeLines}
	if cfg.App.CombinedForms {
		combined = service.Pipeline{Pages: service.PagesAll, Mode: service.ModeBoth, FormsFirstPageOnly: true}
	}

	router.POST("/process-insurance",
		handler.BodyLimit(cfg.Server.MaxBodyBytes),
		h.Process(service.Pipeline{Pages: service.PagesFirst, Mode: service.ModeForms}))

	router.POST("/process-insurance-combined",
		handler.APIKeyAuth(cfg.App.APIKeyHeader, cfg.App.APIKey, log),
		handler.BodyLimit(cfg.Server.MaxBodyBytes),
		h.Process(combined))

	return router
}

func newBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.ObjectStore, ocr.Provider, error) {
	var store repository.ObjectStore

	switch cfg.App.StorageBackend {
	case config.StorageGCS:
		gcs, err := repository.NewGCSRepository(ctx, cfg.GCS.BucketName, cfg.S3.Timeout, log)
		if err != nil {
			return nil, nil, err
		}
		store = gcs
	default:
		awsCfg, err := awscfg.Load(ctx, &cfg.AWS, cfg.AWS.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		store = repository.NewS3Repository(repository.NewS3Client(awsCfg, &cfg.S3), &cfg.S3, log)
	}

	switch cfg.OCR.Provider {
	case config.OCRTesseract:
		return store, ocr.NewTesseractProvider(store, cfg.OCR.Languages, int(cfg.App.RasterDPI), log), nil
	default:
		awsCfg, err := awscfg.Load(ctx, &cfg.AWS, cfg.OCR.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config for Textract: %w", err)
		}
		client := textract.NewFromConfig(awsCfg)
		return store, ocr.NewTextractProvider(client, store.Bucket(), cfg.OCR.Timeout, log), nil
	}
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("host", s.cfg.Server.Host),
		zap.String("port", s.cfg.Server.Port),
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
