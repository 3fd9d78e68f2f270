package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CloudflareStorage routes video and audio to Stream and everything else to
// Images. It keeps no state between calls; everything Delete needs travels in
// File.ProviderMetadata.
type CloudflareStorage struct {
	stream     *StreamClient
	images     *ImagesClient
	derivative *DerivativeGenerator
	videoExts  []string
	variant    string
	logger     *slog.Logger
}

var _ Provider = (*CloudflareStorage)(nil)

func NewCloudflareStorage(cfg Config) (*CloudflareStorage, error) {
	if cfg.AccountID == "" {
		return nil, errors.New("cloudflare account id is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("cloudflare api key is required")
	}
	if cfg.DerivativeFailurePolicy != "" && cfg.DerivativeFailurePolicy != DerivativeFail && cfg.DerivativeFailurePolicy != DerivativeSkip {
		return nil, fmt.Errorf("unknown derivative failure policy %q", cfg.DerivativeFailurePolicy)
	}
	if pct := cfg.ThumbnailTimestampPct; pct != nil && (*pct < 0 || *pct > 1) {
		return nil, fmt.Errorf("thumbnail timestamp pct %v is outside [0, 1]", *pct)
	}
	cfg = cfg.withDefaults()

	images := NewImagesClient(cfg)
	cfg.Logger.Info("cloudflare storage initialized", "func", "NewCloudflareStorage", "accountId", cfg.AccountID, "variant", cfg.Variant, "optimise", cfg.OptimiseEnabled())

	return &CloudflareStorage{
		stream:     NewStreamClient(cfg),
		images:     images,
		derivative: NewDerivativeGenerator(cfg, images),
		videoExts:  cfg.VideoExtensions,
		variant:    cfg.Variant,
		logger:     cfg.Logger,
	}, nil
}

// Classify reports which protocol Upload uses for ext under this configuration.
func (s *CloudflareStorage) Classify(ext string) MediaKind {
	return classifyWith(s.videoExts, ext)
}

func (s *CloudflareStorage) Upload(ctx context.Context, file File) (File, error) {
	kind := s.Classify(file.Ext)
	start := time.Now()
	file.URL = ""
	file.ProviderMetadata = nil

	var (
		out File
		err error
	)
	switch kind {
	case KindVideo:
		out, err = s.stream.Upload(ctx, file)
	default:
		out, err = s.uploadImage(ctx, file)
	}

	UploadDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		UploadsTotal.WithLabelValues(kind.String(), "failed").Inc()
		s.logger.Error("upload failed", "func", "Upload", "kind", kind.String(), "filename", file.Filename(), "err", err)
		return File{}, err
	}

	UploadsTotal.WithLabelValues(kind.String(), "succeeded").Inc()
	UploadBytes.WithLabelValues(kind.String()).Observe(float64(len(file.Content)))
	return out, nil
}

func (s *CloudflareStorage) uploadImage(ctx context.Context, file File) (File, error) {
	res, err := s.images.Upload(ctx, file.Content, file.Filename())
	if err != nil {
		return File{}, err
	}

	file.URL = NormalizeURL(res.URL, s.variant)
	file.ProviderMetadata = &ProviderMetadata{
		PublicID:     res.PublicID,
		ResourceType: res.ResourceType,
	}
	s.logger.Info("image uploaded", "func", "uploadImage", "publicId", res.PublicID, "url", file.URL)

	return s.derivative.Attach(ctx, file)
}

func (s *CloudflareStorage) Delete(ctx context.Context, file File) error {
	meta := file.ProviderMetadata
	if meta == nil {
		s.logger.Info("file has no provider metadata, nothing to delete", "func", "Delete", "filename", file.Filename())
		return nil
	}

	if meta.IsStream() {
		return s.deleteAsset(ctx, AssetVideo, meta.PublicID, s.stream.Delete)
	}

	if err := s.deleteAsset(ctx, AssetImage, meta.PublicID, s.images.Delete); err != nil {
		return err
	}
	if meta.Webp != nil && meta.Webp.PublicID != "" {
		return s.deleteAsset(ctx, AssetWebp, meta.Webp.PublicID, s.images.Delete)
	}
	return nil
}

// deleteAsset treats 404 as already deleted.
func (s *CloudflareStorage) deleteAsset(ctx context.Context, asset Asset, publicID string, remove func(context.Context, string) error) error {
	err := remove(ctx, publicID)
	switch {
	case err == nil:
		DeletesTotal.WithLabelValues(string(asset), "deleted").Inc()
		s.logger.Info("asset deleted", "func", "deleteAsset", "asset", asset, "publicId", publicID)
		return nil
	case errors.Is(err, ErrNotFound):
		DeletesTotal.WithLabelValues(string(asset), "not_found").Inc()
		s.logger.Warn("asset not found on Cloudflare", "func", "deleteAsset", "asset", asset, "publicId", publicID, "err", err)
		return nil
	default:
		DeletesTotal.WithLabelValues(string(asset), "failed").Inc()
		s.logger.Error("failed to delete asset", "func", "deleteAsset", "asset", asset, "publicId", publicID, "err", err)
		return &DeleteError{Asset: asset, PublicID: publicID, Err: err}
	}
}
