package internal

import (
	"database/sql"

	"cloudflare-media-provider/internal/storage"
)

// ===== Data Models =====

// FileRecord is a stored upload as returned by the /files endpoints.
type FileRecord struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	Hash             string                    `json:"hash"`
	Ext              string                    `json:"ext"`
	Mime             string                    `json:"mime"`
	Size             int64                     `json:"size"`
	URL              string                    `json:"url"`
	ProviderMetadata *storage.ProviderMetadata `json:"providerMetadata"`
	CreatedAt        int64                     `json:"createdAt"`
}

// ServerInfo represents the version information of the server.
type ServerInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
	Files     int    `json:"files"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ===== Server State =====

// App holds the application-wide dependencies and configuration.
type App struct {
	ApiKey         string
	DB             *sql.DB
	Storage        storage.Provider
	MaxUploadBytes int64
	Version        string
	BuildTime      string
}

func NewApp(apiKey string, db *sql.DB, provider storage.Provider, maxUploadBytes int64) *App {
	return &App{
		ApiKey:         apiKey,
		DB:             db,
		Storage:        provider,
		MaxUploadBytes: maxUploadBytes,
		Version:        "local",
		BuildTime:      "unknown",
	}
}
