package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeCloudflare serves the subset of the Stream tus and Images APIs the provider uses.
type fakeCloudflare struct {
	srv *httptest.Server

	mu sync.Mutex
	// mediaIDFor returns the stream-media-id for an upload filename, "" to omit the header.
	mediaIDFor   func(filename string) string
	tusUploads   map[string]*tusUpload
	handshakes   []tusHandshake
	patches      int
	createStatus int // 2xx status for tus creation, default 201
	patchStatus  int // 2xx status for tus chunks, default 204
	imageReplies []string // JSON bodies returned by image uploads, in order
	imageStatus  int      // non-zero overrides the image upload status
	imageUploads []imageUpload
	deleteStatus map[string]int // path suffix "stream/<id>" or "images/v1/<id>" -> status
	deletes      []string
}

type tusHandshake struct {
	Authorization string
	Length        int64
	Metadata      map[string]string
}

type tusUpload struct {
	mediaID string
	length  int64
	data    []byte
}

type imageUpload struct {
	Authorization string
	Filename      string
	Data          []byte
}

func newFakeCloudflare(t *testing.T) *fakeCloudflare {
	t.Helper()
	f := &fakeCloudflare{
		mediaIDFor:   func(string) string { return "" },
		tusUploads:   make(map[string]*tusUpload),
		deleteStatus: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /client/v4/accounts/{account}/stream", f.handleTusCreate)
	mux.HandleFunc("PATCH /tus/{id}", f.handleTusPatch)
	mux.HandleFunc("POST /client/v4/accounts/{account}/images/v1", f.handleImageUpload)
	mux.HandleFunc("DELETE /client/v4/accounts/{account}/stream/{id}", f.handleDelete)
	mux.HandleFunc("DELETE /client/v4/accounts/{account}/images/v1/{id}", f.handleDelete)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCloudflare) config() Config {
	return Config{
		AccountID:               "acct",
		APIKey:                  "secret-token",
		StreamCustomerSubdomain: "sub.example.com",
		APIBaseURL:              f.srv.URL + "/client/v4",
		Logger:                  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func decodeTusMetadata(header string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), " ", 2)
		if len(parts) != 2 {
			continue
		}
		v, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			continue
		}
		out[parts[0]] = string(v)
	}
	return out
}

func (f *fakeCloudflare) handleTusCreate(w http.ResponseWriter, r *http.Request) {
	length, err := strconv.ParseInt(r.Header.Get("Upload-Length"), 10, 64)
	if err != nil {
		http.Error(w, "bad Upload-Length", http.StatusBadRequest)
		return
	}
	meta := decodeTusMetadata(r.Header.Get("Upload-Metadata"))

	f.mu.Lock()
	f.handshakes = append(f.handshakes, tusHandshake{
		Authorization: r.Header.Get("Authorization"),
		Length:        length,
		Metadata:      meta,
	})
	uploadID := fmt.Sprintf("u%d", len(f.handshakes))
	mediaID := f.mediaIDFor(meta["filename"])
	f.tusUploads[uploadID] = &tusUpload{mediaID: mediaID, length: length}
	status := f.createStatus
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusCreated
	}

	w.Header().Set("Tus-Resumable", "1.0.0")
	w.Header().Set("Location", f.srv.URL+"/tus/"+uploadID)
	if mediaID != "" {
		w.Header().Set(mediaIDHeader, mediaID)
	}
	w.WriteHeader(status)
}

func (f *fakeCloudflare) handleTusPatch(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		http.Error(w, "bad Upload-Offset", http.StatusBadRequest)
		return
	}
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.tusUploads[r.PathValue("id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if offset != int64(len(up.data)) {
		w.WriteHeader(http.StatusConflict)
		return
	}
	up.data = append(up.data, body...)
	f.patches++

	w.Header().Set("Tus-Resumable", "1.0.0")
	w.Header().Set("Upload-Offset", strconv.Itoa(len(up.data)))
	status := f.patchStatus
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (f *fakeCloudflare) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	f.mu.Lock()
	f.imageUploads = append(f.imageUploads, imageUpload{
		Authorization: r.Header.Get("Authorization"),
		Filename:      header.Filename,
		Data:          data,
	})
	n := len(f.imageUploads)
	status := f.imageStatus
	var reply string
	if n <= len(f.imageReplies) {
		reply = f.imageReplies[n-1]
	}
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, `{"success":false,"errors":[{"code":5400,"message":"bad request"}]}`, status)
		return
	}
	if reply == "" {
		reply = imageReply(fmt.Sprintf("img%d", n), header.Filename)
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, reply)
}

func (f *fakeCloudflare) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/client/v4/accounts/"+r.PathValue("account")+"/")

	f.mu.Lock()
	f.deletes = append(f.deletes, key)
	status, ok := f.deleteStatus[key]
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer secret-token" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if ok {
		http.Error(w, `{"success":false}`, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"success":true,"errors":[],"result":{}}`)
}

func imageReply(id, filename string) string {
	body, _ := json.Marshal(map[string]any{
		"success": true,
		"errors":  []any{},
		"result": map[string]any{
			"id":       id,
			"filename": filename,
			"variants": []string{"https://imagedelivery.net/hash/" + id + "/public"},
		},
	})
	return string(body)
}

func (f *fakeCloudflare) deleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func (f *fakeCloudflare) handshakeList() []tusHandshake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tusHandshake(nil), f.handshakes...)
}

func (f *fakeCloudflare) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches
}

func (f *fakeCloudflare) tusData(uploadID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if up, ok := f.tusUploads[uploadID]; ok {
		return append([]byte(nil), up.data...)
	}
	return nil
}

func (f *fakeCloudflare) imageUploadList() []imageUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imageUpload(nil), f.imageUploads...)
}

// configure changes the fake's behaviour under its lock.
func (f *fakeCloudflare) configure(fn func(f *fakeCloudflare)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
