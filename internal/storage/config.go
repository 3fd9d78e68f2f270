package storage

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

const (
	DefaultAPIBaseURL = "https://api.cloudflare.com/client/v4"

	// DefaultChunkSize is the tus chunk size used for Stream uploads.
	DefaultChunkSize int64 = 50 * 1024 * 1024

	// DefaultThumbnailTimestampPct picks the poster frame at half the duration.
	DefaultThumbnailTimestampPct = 0.5

	DefaultWebpQuality = 100
)

// DerivativeFailurePolicy decides what Upload does when the webp derivative fails.
type DerivativeFailurePolicy string

const (
	DerivativeFail DerivativeFailurePolicy = "fail"
	DerivativeSkip DerivativeFailurePolicy = "skip"
)

// Config is the provider configuration supplied once by the host.
type Config struct {
	AccountID               string
	APIKey                  string
	Variant                 string
	Optimise                string // "true" or "True" enables webp derivatives
	StreamCustomerSubdomain string

	APIBaseURL            string
	ChunkSize             int64
	ThumbnailTimestampPct *float64 // nil selects DefaultThumbnailTimestampPct; 0 is the first frame
	StrictMediaID         bool
	VideoExtensions       []string
	OptimisableExtensions []string

	WebpQuality             int
	DerivativeMaxDimension  int
	DerivativeFailurePolicy DerivativeFailurePolicy

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c Config) OptimiseEnabled() bool {
	return c.Optimise == "true" || c.Optimise == "True"
}

func (c Config) withDefaults() Config {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	c.APIBaseURL = strings.TrimSuffix(c.APIBaseURL, "/")
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ThumbnailTimestampPct == nil {
		pct := DefaultThumbnailTimestampPct
		c.ThumbnailTimestampPct = &pct
	}
	if len(c.VideoExtensions) == 0 {
		c.VideoExtensions = slices.Clone(VideoExtensions)
	}
	if len(c.OptimisableExtensions) == 0 {
		c.OptimisableExtensions = slices.Clone(OptimisableExtensions)
	}
	if c.WebpQuality <= 0 || c.WebpQuality > 100 {
		c.WebpQuality = DefaultWebpQuality
	}
	if c.DerivativeFailurePolicy == "" {
		c.DerivativeFailurePolicy = DerivativeFail
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
