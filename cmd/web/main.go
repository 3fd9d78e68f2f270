package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"cloudflare-media-provider/internal"
	"cloudflare-media-provider/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// To be set via ldflags
var (
	Version   = "local"
	BuildTime = "unknown"
)

func healthcheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"alive": true}`))
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.GetConfig(*configPath)
	if err != nil {
		slog.Error("unable to read in config", "func", "main", "err", err)
		os.Exit(1)
	}

	logFile, err := internal.SetupLogging(config.Logging, "server")
	if err != nil {
		slog.Error("unable to set up logging", "func", "main", "err", err)
		os.Exit(1)
	}
	defer logFile.Close()

	slog.Info("server starting up", "func", "main", "version", Version, "build_time", BuildTime)

	db, err := internal.InitDB(config.Database.Path, config.Database)
	if err != nil {
		slog.Error("unable to initialize database", "func", "main", "path", config.Database.Path, "err", err)
		os.Exit(1)
	}
	defer db.Close()
	seedStoredFiles(db)

	provider, err := storage.NewCloudflareStorage(config.Cloudflare.StorageConfig(slog.Default()))
	if err != nil {
		slog.Error("unable to create cloudflare storage", "func", "main", "err", err)
		os.Exit(1)
	}

	if config.Server.ApiKey == "" {
		slog.Warn("server.apiKey is empty, uploads and deletes are disabled", "func", "main")
	}

	app := internal.NewApp(config.Server.ApiKey, db, provider, config.Server.MaxUploadBytes)
	app.Version = Version
	app.BuildTime = BuildTime

	mux := http.NewServeMux()
	app.RegisterRoutes(mux)
	mux.HandleFunc("/healthcheck", healthcheckHandler)
	mux.Handle("/metrics", promhttp.Handler())

	slog.Info("server listening", "func", "main", "addr", config.Server.Addr)
	if err := http.ListenAndServe(config.Server.Addr, mux); err != nil {
		slog.Error("unable to start server", "func", "main", "err", err)
		os.Exit(1)
	}
}

func seedStoredFiles(db *sql.DB) {
	app := &internal.App{DB: db}
	count, err := app.CountFiles(context.Background())
	if err != nil {
		slog.Warn("unable to count stored files", "func", "seedStoredFiles", "err", err)
		return
	}
	internal.StoredFiles.Set(float64(count))
}
