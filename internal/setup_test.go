package internal

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"sync"
	"testing"

	"cloudflare-media-provider/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

// fakeProvider records calls and answers with canned results.
type fakeProvider struct {
	mu           sync.Mutex
	uploads      []storage.File
	deletes      []storage.File
	uploadErr    error
	deleteErr    error
	deleteCtxErr error // ctx.Err() seen by the most recent Delete
}

func (p *fakeProvider) Upload(_ context.Context, file storage.File) (storage.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, file)
	if p.uploadErr != nil {
		return storage.File{}, p.uploadErr
	}
	file.URL = "https://imagedelivery.net/acct/" + file.Hash + "/public"
	file.ProviderMetadata = &storage.ProviderMetadata{
		PublicID:     "img-" + file.Hash,
		ResourceType: strings.TrimPrefix(file.Ext, "."),
	}
	if storage.Classify(file.Ext) == storage.KindVideo {
		file.URL = "https://sub.example.com/vid-" + file.Hash + "/downloads/default.mp4"
		file.ProviderMetadata = &storage.ProviderMetadata{PublicID: "vid-" + file.Hash, Source: storage.SourceStream}
	}
	return file, nil
}

func (p *fakeProvider) Delete(ctx context.Context, file storage.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, file)
	p.deleteCtxErr = ctx.Err()
	return p.deleteErr
}

func (p *fakeProvider) uploadCalls() []storage.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]storage.File(nil), p.uploads...)
}

func (p *fakeProvider) lastDeleteCtxErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deleteCtxErr
}

func (p *fakeProvider) deleteCalls() []storage.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]storage.File(nil), p.deletes...)
}

const testApiKey = "test-api-key"

// setupTestApp creates a new App with an in-memory database and a fake provider.
// The caller is responsible for closing the db.
func setupTestApp(t *testing.T) (*App, *http.ServeMux, *fakeProvider) {
	t.Helper()

	db, err := InitDB(":memory:", DatabaseConfig{})
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	provider := &fakeProvider{}
	app := NewApp(testApiKey, db, provider, 1<<20)

	mux := http.NewServeMux()
	app.RegisterRoutes(mux)

	return app, mux, provider
}

func setupTestDB(t *testing.T) *App {
	t.Helper()
	db, err := InitDB(":memory:", DatabaseConfig{})
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	return &App{DB: db}
}

func closeDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("failed to close db: %v", err)
	}
}
