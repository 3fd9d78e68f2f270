package internal

import (
	"fmt"
	"log/slog"
	"os"

	"cloudflare-media-provider/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

type DerivativeConfig struct {
	Quality      int    `yaml:"quality" env:"CF_WEBP_QUALITY" validate:"gte=0,lte=100"`
	MaxDimension int    `yaml:"maxDimension" env:"CF_WEBP_MAX_DIMENSION" validate:"gte=0"`
	OnFailure    string `yaml:"onFailure" env:"CF_WEBP_ON_FAILURE" validate:"omitempty,oneof=fail skip"`
}

type CloudflareConfig struct {
	AccountId               string           `yaml:"accountId" env:"CF_ACCOUNT_ID" validate:"required"`
	ApiKey                  string           `yaml:"apiKey" env:"CF_API_KEY" validate:"required"`
	Variant                 string           `yaml:"variant" env:"CF_VARIANT"`
	Optimise                string           `yaml:"optimise" env:"CF_OPTIMISE"`
	StreamCustomerSubdomain string           `yaml:"streamCustomerSubdomain" env:"CF_STREAM_SUBDOMAIN" validate:"required,hostname"`
	ApiBaseUrl              string           `yaml:"apiBaseUrl" env:"CF_API_BASE_URL" validate:"omitempty,url"`
	ChunkSizeBytes          int64            `yaml:"chunkSizeBytes" env:"CF_CHUNK_SIZE_BYTES" validate:"gte=0"`
	ThumbnailTimestampPct   *float64         `yaml:"thumbnailTimestampPct" validate:"omitempty,gte=0,lte=1"`
	StrictMediaId           bool             `yaml:"strictMediaId" env:"CF_STRICT_MEDIA_ID"`
	VideoExtensions         []string         `yaml:"videoExtensions"`
	OptimisableExtensions   []string         `yaml:"optimisableExtensions"`
	Derivative              DerivativeConfig `yaml:"derivative"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr" env:"SERVER_ADDR"`
	ApiKey         string `yaml:"apiKey" env:"SERVER_API_KEY"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes" env:"SERVER_MAX_UPLOAD_BYTES" validate:"gte=0"`
}

type LoggingConfig struct {
	Dir   string `yaml:"dir" env:"LOG_DIR"`
	Level string `yaml:"level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path" env:"DB_PATH"`
	JournalMode   string `yaml:"journal_mode"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	Synchronous   string `yaml:"synchronous"`
}

type Config struct {
	Cloudflare CloudflareConfig `yaml:"cloudflare"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
}

// GetConfig reads the yaml file at path, applies environment overrides and
// validates the result. A missing file is fine when the environment supplies
// everything.
func GetConfig(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("unable to unmarshal yaml: %v", err)
		}
	case os.IsNotExist(err):
		slog.Warn("config file not found, using environment only", "func", "GetConfig", "path", path)
	default:
		return Config{}, fmt.Errorf("unable to read yaml file: %v", err)
	}

	if err := cleanenv.ReadEnv(&config); err != nil {
		return Config{}, fmt.Errorf("unable to read environment: %w", err)
	}

	config.applyDefaults()

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 512 << 20
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "tmp"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "files.db"
	}
}

// StorageConfig maps the yaml options onto the provider configuration.
func (c CloudflareConfig) StorageConfig(logger *slog.Logger) storage.Config {
	return storage.Config{
		AccountID:               c.AccountId,
		APIKey:                  c.ApiKey,
		Variant:                 c.Variant,
		Optimise:                c.Optimise,
		StreamCustomerSubdomain: c.StreamCustomerSubdomain,
		APIBaseURL:              c.ApiBaseUrl,
		ChunkSize:               c.ChunkSizeBytes,
		ThumbnailTimestampPct:   c.ThumbnailTimestampPct,
		StrictMediaID:           c.StrictMediaId,
		VideoExtensions:         c.VideoExtensions,
		OptimisableExtensions:   c.OptimisableExtensions,
		WebpQuality:             c.Derivative.Quality,
		DerivativeMaxDimension:  c.Derivative.MaxDimension,
		DerivativeFailurePolicy: storage.DerivativeFailurePolicy(c.Derivative.OnFailure),
		Logger:                  logger,
	}
}
