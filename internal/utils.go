package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"cloudflare-media-provider/internal/storage"

	"github.com/kennygrant/sanitize"
	"github.com/lithammer/shortuuid/v4"
)

// NewFileHash builds the asset name used on Cloudflare.
// "My Holiday.JPG" -> "My-Holiday_3Wqv...".
func NewFileHash(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	// BaseName keeps capitalization and strips path separators
	sanitized := sanitize.BaseName(base)
	if sanitized == "" {
		sanitized = "file"
	}
	return sanitized + "_" + shortuuid.New()
}

// NormalizeExt lowercases the extension so "IMG.JPG" routes like "img.jpg".
func NormalizeExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// NewStorageFile prepares the provider input for an uploaded payload.
func NewStorageFile(filename, mimeType string, content []byte) storage.File {
	name := filepath.Base(filename)
	ext := NormalizeExt(name)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = storage.ContentType(name)
	}
	return storage.File{
		Name:    name,
		Hash:    NewFileHash(name),
		Ext:     ext,
		Mime:    mimeType,
		Size:    int64(len(content)),
		Content: content,
	}
}

func NewFileRecord(file storage.File) *FileRecord {
	return &FileRecord{
		ID:               shortuuid.New(),
		Name:             file.Name,
		Hash:             file.Hash,
		Ext:              file.Ext,
		Mime:             file.Mime,
		Size:             file.Size,
		URL:              file.URL,
		ProviderMetadata: file.ProviderMetadata,
		CreatedAt:        time.Now().Unix(),
	}
}

// StorageFile rebuilds what Delete needs from a stored record.
func (rec *FileRecord) StorageFile() storage.File {
	return storage.File{
		Name:             rec.Name,
		Hash:             rec.Hash,
		Ext:              rec.Ext,
		Mime:             rec.Mime,
		Size:             rec.Size,
		URL:              rec.URL,
		ProviderMetadata: rec.ProviderMetadata,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "func", "writeJSON", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		Http500Errors.Inc()
	} else if status >= 400 {
		Http400Errors.Inc()
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

// DiscardUpload deletes the remote assets of an upload that will not be kept.
// It runs even when ctx is already canceled.
func DiscardUpload(ctx context.Context, provider storage.Provider, file storage.File) {
	if file.ProviderMetadata == nil {
		return
	}
	if err := provider.Delete(context.WithoutCancel(ctx), file); err != nil {
		slog.Error("failed to remove discarded upload", "func", "DiscardUpload", "hash", file.Hash, "publicId", file.ProviderMetadata.PublicID, "err", err)
		return
	}
	slog.Info("removed discarded upload", "func", "DiscardUpload", "hash", file.Hash, "publicId", file.ProviderMetadata.PublicID)
}

// DiscardPartialUpload removes the primary asset left behind when Upload failed
// on the webp derivative. Other errors leave nothing on Cloudflare.
func DiscardPartialUpload(ctx context.Context, provider storage.Provider, err error) {
	var derr *storage.DerivativeError
	if errors.As(err, &derr) {
		DiscardUpload(ctx, provider, derr.Primary)
	}
}
