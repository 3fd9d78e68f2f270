package storage

import (
	"mime"
	"path/filepath"
	"slices"
	"strings"
)

// MediaKind selects the upload protocol.
type MediaKind int

const (
	KindImage MediaKind = iota // multipart upload to Cloudflare Images
	KindVideo                  // tus upload to Cloudflare Stream
)

func (k MediaKind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

var (
	VideoExtensions       = []string{".mp4", ".mkv", ".webm", ".mp3", ".avi"}
	OptimisableExtensions = []string{".jpg", ".png", ".jpeg"}
)

// Classify applies the default VideoExtensions set. It is case-sensitive and
// expects the leading dot; unknown extensions fall through to KindImage.
// CloudflareStorage.Classify honours Config.VideoExtensions instead.
func Classify(ext string) MediaKind {
	return classifyWith(VideoExtensions, ext)
}

// IsOptimisable checks the default OptimisableExtensions set only.
// DerivativeGenerator.Applies honours Config.OptimisableExtensions.
func IsOptimisable(ext string) bool {
	return optimisableWith(OptimisableExtensions, ext)
}

func optimisableWith(exts []string, ext string) bool {
	return slices.Contains(exts, ext)
}

func classifyWith(videoExts []string, ext string) MediaKind {
	if slices.Contains(videoExts, ext) {
		return KindVideo
	}
	return KindImage
}

// ContentType is the fallback when the host did not supply a MIME type.
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		ct := mime.TypeByExtension(ext)
		if ct == "" {
			return "application/octet-stream"
		}
		return ct
	}
}
