package internal

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const multipartMemory = 32 << 20

func (app *App) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /files", app.uploadFileHandler)
	mux.HandleFunc("GET /files", app.listFilesHandler)
	mux.HandleFunc("GET /files/{id}", app.getFileHandler)
	mux.HandleFunc("DELETE /files/{id}", app.deleteFileHandler)
	mux.HandleFunc("GET /info", app.infoHandler)
}

func (app *App) verify(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get("X-API-Key")
	if app.ApiKey == "" || key != app.ApiKey {
		slog.Debug("invalid api key", "func", "verify", "path", r.URL.Path)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

func observe(route string, start time.Time) {
	RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func (app *App) uploadFileHandler(w http.ResponseWriter, r *http.Request) {
	if !app.verify(w, r) {
		return
	}
	defer observe("upload", time.Now())

	if app.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		slog.Warn("failed to parse multipart form", "func", "uploadFileHandler", "err", err)
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		slog.Error("failed to read uploaded file", "func", "uploadFileHandler", "filename", header.Filename, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	if len(content) == 0 {
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	}

	file := NewStorageFile(header.Filename, header.Header.Get("Content-Type"), content)
	uploaded, err := app.Storage.Upload(r.Context(), file)
	if err != nil {
		DiscardPartialUpload(r.Context(), app.Storage, err)
		slog.Error("upload to provider failed", "func", "uploadFileHandler", "hash", file.Hash, "ext", file.Ext, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	rec := NewFileRecord(uploaded)
	if err := app.InsertFile(r.Context(), rec); err != nil {
		slog.Error("failed to store file record", "func", "uploadFileHandler", "hash", rec.Hash, "err", err)
		DiscardUpload(r.Context(), app.Storage, uploaded)
		writeError(w, http.StatusInternalServerError, "failed to store file record")
		return
	}
	StoredFiles.Inc()

	slog.Info("file uploaded", "func", "uploadFileHandler", "id", rec.ID, "hash", rec.Hash, "ext", rec.Ext, "size", rec.Size, "url", rec.URL)
	writeJSON(w, http.StatusCreated, rec)
}

func (app *App) listFilesHandler(w http.ResponseWriter, r *http.Request) {
	files, err := app.ListFiles(r.Context())
	if err != nil {
		slog.Error("failed to list files", "func", "listFilesHandler", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (app *App) getFileHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := app.GetFile(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		slog.Error("failed to get file", "func", "getFileHandler", "id", r.PathValue("id"), "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get file")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (app *App) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	if !app.verify(w, r) {
		return
	}
	defer observe("delete", time.Now())

	id := r.PathValue("id")
	rec, err := app.GetFile(r.Context(), id)
	if errors.Is(err, ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		slog.Error("failed to get file", "func", "deleteFileHandler", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get file")
		return
	}

	if err := app.Storage.Delete(r.Context(), rec.StorageFile()); err != nil {
		// the row stays so the delete can be retried
		slog.Error("delete on provider failed", "func", "deleteFileHandler", "id", id, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if err := app.DeleteFileRecord(r.Context(), id); err != nil {
		slog.Error("failed to delete file record", "func", "deleteFileHandler", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete file record")
		return
	}
	StoredFiles.Dec()

	slog.Info("file deleted", "func", "deleteFileHandler", "id", id, "hash", rec.Hash)
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) infoHandler(w http.ResponseWriter, r *http.Request) {
	count, err := app.CountFiles(r.Context())
	if err != nil {
		slog.Error("failed to count files", "func", "infoHandler", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to count files")
		return
	}
	writeJSON(w, http.StatusOK, ServerInfo{Version: app.Version, BuildTime: app.BuildTime, Files: count})
}
