package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloudflare-media-provider/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

var ErrRecordNotFound = errors.New("file record not found")

func InitDB(path string, config DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.BusyTimeoutMS == 0 {
		config.BusyTimeoutMS = 5000
	}
	if config.Synchronous == "" {
		config.Synchronous = "NORMAL"
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s;", config.JournalMode),
		fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeoutMS),
		fmt.Sprintf("PRAGMA synchronous=%s;", config.Synchronous),
		"PRAGMA temp_store=MEMORY;",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma '%s': %w", pragma, err)
		}
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		name TEXT,
		hash TEXT,
		ext TEXT,
		mime TEXT,
		size INTEGER,
		url TEXT,
		provider_metadata TEXT,
		created_at INTEGER
	);
	`)
	if err != nil {
		return nil, fmt.Errorf("error creating files table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_files_created_at ON files (created_at);`)
	if err != nil {
		return nil, fmt.Errorf("error creating files index: %w", err)
	}

	// :memory: databases are per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func encodeMetadata(meta *storage.ProviderMetadata) (sql.NullString, error) {
	if meta == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal provider metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeMetadata(raw sql.NullString) (*storage.ProviderMetadata, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var meta storage.ProviderMetadata
	if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider metadata: %w", err)
	}
	return &meta, nil
}

// InsertFile stores a new record. The record must carry an id.
func (a *App) InsertFile(ctx context.Context, rec *FileRecord) error {
	meta, err := encodeMetadata(rec.ProviderMetadata)
	if err != nil {
		return err
	}
	_, err = a.DB.ExecContext(ctx, `
		INSERT INTO files (id, name, hash, ext, mime, size, url, provider_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Hash, rec.Ext, rec.Mime, rec.Size, rec.URL, meta, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", rec.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var meta sql.NullString
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Hash, &rec.Ext, &rec.Mime, &rec.Size, &rec.URL, &meta, &rec.CreatedAt); err != nil {
		return nil, err
	}
	decoded, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	rec.ProviderMetadata = decoded
	return &rec, nil
}

// GetFile returns ErrRecordNotFound when no row has the id.
func (a *App) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	row := a.DB.QueryRowContext(ctx, "SELECT id, name, hash, ext, mime, size, url, provider_metadata, created_at FROM files WHERE id = ?", id)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListFiles returns all records, newest first.
func (a *App) ListFiles(ctx context.Context) ([]FileRecord, error) {
	rows, err := a.DB.QueryContext(ctx, "SELECT id, name, hash, ext, mime, size, url, provider_metadata, created_at FROM files ORDER BY created_at DESC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []FileRecord{}
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *rec)
	}
	return files, rows.Err()
}

func (a *App) DeleteFileRecord(ctx context.Context, id string) error {
	_, err := a.DB.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id)
	return err
}

func (a *App) CountFiles(ctx context.Context) (int, error) {
	var count int
	err := a.DB.QueryRowContext(ctx, "SELECT count(*) FROM files").Scan(&count)
	return count, err
}
