package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"cloudflare-media-provider/internal/storage"
)

func TestNewFileHash(t *testing.T) {
	tests := []struct {
		input  string
		prefix string
	}{
		{"photo.jpg", "photo_"},
		{"My Holiday.JPG", "My-Holiday_"},
		{"/tmp/dir/clip.mp4", "clip_"},
		{".png", "file_"},
	}

	for _, test := range tests {
		got := NewFileHash(test.input)
		if !strings.HasPrefix(got, test.prefix) {
			t.Errorf("NewFileHash(%q) = %q, expected prefix %q", test.input, got, test.prefix)
		}
		if len(got) <= len(test.prefix) {
			t.Errorf("NewFileHash(%q) = %q, expected a unique suffix", test.input, got)
		}
	}

	if NewFileHash("a.png") == NewFileHash("a.png") {
		t.Error("expected distinct hashes for the same name")
	}
}

func TestNewStorageFile(t *testing.T) {
	content := []byte("data")

	file := NewStorageFile("dir/Clip.MP4", "", content)
	if file.Ext != ".mp4" {
		t.Errorf("expected ext .mp4, got %s", file.Ext)
	}
	if file.Mime != "video/mp4" {
		t.Errorf("expected mime video/mp4, got %s", file.Mime)
	}
	if file.Name != "Clip.MP4" {
		t.Errorf("expected name Clip.MP4, got %s", file.Name)
	}
	if file.Size != 4 {
		t.Errorf("expected size 4, got %d", file.Size)
	}
	if storage.Classify(file.Ext) != storage.KindVideo {
		t.Error("expected video classification")
	}

	file = NewStorageFile("photo.jpg", "image/pjpeg", content)
	if file.Mime != "image/pjpeg" {
		t.Errorf("expected supplied mime to be kept, got %s", file.Mime)
	}
}

func TestFileRecordStorageFile(t *testing.T) {
	meta := &storage.ProviderMetadata{PublicID: "m1", Source: storage.SourceStream}
	rec := &FileRecord{ID: "r", Hash: "h", Ext: ".mp4", URL: "u", ProviderMetadata: meta}

	file := rec.StorageFile()
	if file.Filename() != "h.mp4" {
		t.Errorf("expected filename h.mp4, got %s", file.Filename())
	}
	if file.ProviderMetadata != meta {
		t.Error("expected metadata to be carried over")
	}
}

func TestDiscardUpload(t *testing.T) {
	provider := &fakeProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	DiscardUpload(ctx, provider, storage.File{Hash: "h", Ext: ".mp4"})
	if len(provider.deleteCalls()) != 0 {
		t.Error("expected no delete for a file without metadata")
	}

	file := storage.File{Hash: "h", Ext: ".png", ProviderMetadata: &storage.ProviderMetadata{PublicID: "p1"}}
	DiscardUpload(ctx, provider, file)
	deletes := provider.deleteCalls()
	if len(deletes) != 1 || deletes[0].ProviderMetadata.PublicID != "p1" {
		t.Fatalf("expected delete of p1, got %+v", deletes)
	}
	if provider.lastDeleteCtxErr() != nil {
		t.Errorf("expected delete to run detached from cancellation, got %v", provider.lastDeleteCtxErr())
	}
}

func TestDiscardPartialUpload(t *testing.T) {
	primary := storage.File{Hash: "h", Ext: ".jpg", ProviderMetadata: &storage.ProviderMetadata{PublicID: "p1", ResourceType: "jpg"}}

	tests := []struct {
		name    string
		err     error
		deletes int
	}{
		{"derivative failure", &storage.DerivativeError{Primary: primary, Err: errors.New("encode failed")}, 1},
		{"wrapped derivative failure", fmt.Errorf("upload: %w", &storage.DerivativeError{Primary: primary, Err: errors.New("x")}), 1},
		{"transport failure", &storage.TransportError{Op: "image upload", StatusCode: 500}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{}
			DiscardPartialUpload(context.Background(), provider, tc.err)
			if got := len(provider.deleteCalls()); got != tc.deletes {
				t.Errorf("expected %d deletes, got %d", tc.deletes, got)
			}
		})
	}
}
