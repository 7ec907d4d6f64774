package config

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageS3  = "s3"
	StorageGCS = "gcs"

	OCRTextract  = "textract"
	OCRTesseract = "tesseract"
)

type Config struct {
	Server ServerConfig
	AWS    AWSConfig
	S3     S3Config
	GCS    GCSConfig
	OCR    OCRConfig
	App    AppConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	MaxBodyBytes int64
}

type AWSConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	MaxAttempts     int
}

type S3Config struct {
	Endpoint   string
	BucketName string
	Timeout    time.Duration
}

type GCSConfig struct {
	BucketName string
}

type OCRConfig struct {
	Provider  string
	Region    string
	Languages []string
	Timeout   time.Duration
}

type AppConfig struct {
	APIKey         string
	APIKeyHeader   string
	StorageBackend string
	RasterDPI      float64
	MaxImageBytes  int64
	CombinedForms  bool
}

func Load() (*Config, error) {
	// a missing .env file is normal outside local development
	_ = godotenv.Load()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("MAX_BODY_BYTES", 50*1024*1024) // 50MB
	viper.SetDefault("AWS_MAX_ATTEMPTS", 3)
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("STORAGE_TIMEOUT", 30*time.Second)
	viper.SetDefault("STORAGE_BACKEND", StorageS3)
	viper.SetDefault("OCR_PROVIDER", OCRTextract)
	viper.SetDefault("OCR_LANGUAGES", "eng")
	viper.SetDefault("OCR_TIMEOUT", 60*time.Second)
	viper.SetDefault("API_KEY_HEADER", "X-Api-Key")
	viper.SetDefault("RASTER_DPI", 300)
	viper.SetDefault("MAX_IMAGE_BYTES", 10*1024*1024) // Textract synchronous limit
	viper.SetDefault("COMBINED_FORMS", false)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:         viper.GetString("SERVER_HOST"),
			Port:         viper.GetString("SERVER_PORT"),
			MaxBodyBytes: viper.GetInt64("MAX_BODY_BYTES"),
		},
		AWS: AWSConfig{
			AccessKeyID:     viper.GetString("AWS_ACCESS_KEY"),
			SecretAccessKey: viper.GetString("AWS_SECRET_KEY"),
			Region:          viper.GetString("AWS_REGION"),
			MaxAttempts:     viper.GetInt("AWS_MAX_ATTEMPTS"),
		},
		S3: S3Config{
			Endpoint:   viper.GetString("S3_ENDPOINT"),
			BucketName: viper.GetString("S3_BUCKET"),
			Timeout:    viper.GetDuration("STORAGE_TIMEOUT"),
		},
		GCS: GCSConfig{
			BucketName: viper.GetString("GCS_BUCKET"),
		},
		OCR: OCRConfig{
			Provider:  strings.ToLower(viper.GetString("OCR_PROVIDER")),
			Region:    viper.GetString("TEXTRACT_REGION"),
			Languages: splitList(viper.GetString("OCR_LANGUAGES")),
			Timeout:   viper.GetDuration("OCR_TIMEOUT"),
		},
		App: AppConfig{
			APIKey:         viper.GetString("API_KEY"),
			APIKeyHeader:   viper.GetString("API_KEY_HEADER"),
			StorageBackend: strings.ToLower(viper.GetString("STORAGE_BACKEND")),
			RasterDPI:      viper.GetFloat64("RASTER_DPI"),
			MaxImageBytes:  viper.GetInt64("MAX_IMAGE_BYTES"),
			CombinedForms:  viper.GetBool("COMBINED_FORMS"),
		},
	}

	if cfg.OCR.Region == "" {
		cfg.OCR.Region = cfg.AWS.Region
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require("API_KEY", c.App.APIKey)
	require("API_KEY_HEADER", c.App.APIKeyHeader)

	switch c.App.StorageBackend {
	case StorageS3:
		require("S3_BUCKET", c.S3.BucketName)
	case StorageGCS:
		require("GCS_BUCKET", c.GCS.BucketName)
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.App.StorageBackend)
	}

	switch c.OCR.Provider {
	case OCRTextract:
		if c.App.StorageBackend != StorageS3 {
			return fmt.Errorf("OCR_PROVIDER %q requires STORAGE_BACKEND %q", OCRTextract, StorageS3)
		}
	case OCRTesseract:
	default:
		return fmt.Errorf("unsupported OCR_PROVIDER %q", c.OCR.Provider)
	}

	if c.NeedsAWS() {
		require("AWS_ACCESS_KEY", c.AWS.AccessKeyID)
		require("AWS_SECRET_KEY", c.AWS.SecretAccessKey)
		require("AWS_REGION", c.AWS.Region)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.App.RasterDPI <= 0 {
		return fmt.Errorf("RASTER_DPI must be positive, got %v", c.App.RasterDPI)
	}

	return nil
}

func (c *Config) NeedsAWS() bool {
	return c.App.StorageBackend == StorageS3 || c.OCR.Provider == OCRTextract
}

// splitList accepts comma or whitespace separated values, "eng,deu" or "eng deu".
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
