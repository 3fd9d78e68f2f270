package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
)

const webpExt = ".webp"

// EncodeWebp re-encodes an image into lossy webp. maxDimension > 0 caps the
// longer side. Swapped out in tests.
var EncodeWebp = func(src []byte, quality, maxDimension int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if maxDimension > 0 {
		img = fitWithin(img, maxDimension)
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, &webp.Options{Lossless: false, Quality: float32(quality)}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales img down so neither side exceeds limit, keeping the aspect ratio.
func fitWithin(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= limit && h <= limit {
		return img
	}

	var newW, newH int
	if w >= h {
		newW = limit
		newH = int(float64(h) * float64(limit) / float64(w))
	} else {
		newH = limit
		newW = int(float64(w) * float64(limit) / float64(h))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// DerivativeGenerator uploads a webp copy of optimisable images.
type DerivativeGenerator struct {
	images       *ImagesClient
	enabled      bool
	extensions   []string
	variant      string
	quality      int
	maxDimension int
	policy       DerivativeFailurePolicy
	logger       *slog.Logger
}

func NewDerivativeGenerator(cfg Config, images *ImagesClient) *DerivativeGenerator {
	cfg = cfg.withDefaults()
	return &DerivativeGenerator{
		images:       images,
		enabled:      cfg.OptimiseEnabled(),
		extensions:   cfg.OptimisableExtensions,
		variant:      cfg.Variant,
		quality:      cfg.WebpQuality,
		maxDimension: cfg.DerivativeMaxDimension,
		policy:       cfg.DerivativeFailurePolicy,
		logger:       cfg.Logger,
	}
}

// Applies reports whether a derivative is generated for ext.
func (g *DerivativeGenerator) Applies(ext string) bool {
	return g.enabled && optimisableWith(g.extensions, ext)
}

// Attach returns file with ProviderMetadata.Webp set. file must already carry
// the primary image metadata. When the derivative is not applicable file is
// returned unchanged.
func (g *DerivativeGenerator) Attach(ctx context.Context, file File) (File, error) {
	if !g.Applies(file.Ext) {
		return file, nil
	}
	if file.ProviderMetadata == nil {
		return File{}, fmt.Errorf("webp derivative for %s: primary image has no metadata", file.Filename())
	}

	webpMeta, err := g.generate(ctx, file)
	if err != nil {
		DerivativesTotal.WithLabelValues("failed").Inc()
		if g.policy == DerivativeSkip {
			g.logger.Warn("webp derivative failed, keeping original only", "func", "DerivativeGenerator.Attach", "publicId", file.ProviderMetadata.PublicID, "err", err)
			return file, nil
		}
		g.logger.Error("webp derivative failed", "func", "DerivativeGenerator.Attach", "publicId", file.ProviderMetadata.PublicID, "err", err)
		return File{}, &DerivativeError{Primary: file, Err: err}
	}

	DerivativesTotal.WithLabelValues("created").Inc()
	meta := file.ProviderMetadata.clone()
	meta.Webp = webpMeta
	file.ProviderMetadata = meta
	return file, nil
}

func (g *DerivativeGenerator) generate(ctx context.Context, file File) (*DerivativeMetadata, error) {
	data, err := EncodeWebp(file.Content, g.quality, g.maxDimension)
	if err != nil {
		return nil, err
	}

	res, err := g.images.Upload(ctx, data, file.Hash+webpExt)
	if err != nil {
		return nil, err
	}

	g.logger.Info("webp derivative uploaded", "func", "DerivativeGenerator.generate", "publicId", res.PublicID, "size", len(data), "originalSize", len(file.Content))
	return &DerivativeMetadata{
		URL:          NormalizeURL(res.URL, g.variant),
		PublicID:     res.PublicID,
		ResourceType: res.ResourceType,
	}, nil
}
