package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/eventials/go-tus"
)

// mediaIDHeader is set by Stream on the tus creation response.
const mediaIDHeader = "stream-media-id"

// StreamClient uploads video and audio to Cloudflare Stream over tus.
type StreamClient struct {
	api          *apiClient
	subdomain    string
	chunkSize    int64
	timestampPct float64
	strict       bool
	logger       *slog.Logger
}

func NewStreamClient(cfg Config) *StreamClient {
	cfg = cfg.withDefaults()
	return &StreamClient{
		api: &apiClient{
			baseURL:    cfg.APIBaseURL,
			accountID:  cfg.AccountID,
			apiKey:     cfg.APIKey,
			httpClient: cfg.HTTPClient,
		},
		subdomain:    cfg.StreamCustomerSubdomain,
		chunkSize:    cfg.ChunkSize,
		timestampPct: *cfg.ThumbnailTimestampPct,
		strict:       cfg.StrictMediaID,
		logger:       cfg.Logger,
	}
}

func (s *StreamClient) endpoint() string {
	return s.api.accountURL("stream")
}

// PlaybackURL is the download URL Stream serves for a media id.
func (s *StreamClient) PlaybackURL(mediaID string) string {
	return fmt.Sprintf("https://%s/%s/downloads/default.mp4", s.subdomain, mediaID)
}

// Upload runs the tus handshake and sends the content in serial chunks.
// The media id is taken from the handshake response headers; if Stream never
// sends it the returned file has no URL or metadata unless strict mode is on.
func (s *StreamClient) Upload(ctx context.Context, file File) (File, error) {
	hook := newMediaIDHook(ctx, transportOf(s.api.httpClient))

	cfg := tus.DefaultConfig()
	cfg.ChunkSize = s.chunkSize
	cfg.Header = http.Header{}
	cfg.Header.Set("Authorization", "Bearer "+s.api.apiKey)
	// The hook binds ctx to every request, so the per-call client has no timeout of its own.
	cfg.HttpClient = &http.Client{Transport: hook}

	client, err := tus.NewClient(s.endpoint(), cfg)
	if err != nil {
		return File{}, fmt.Errorf("failed to create tus client: %w", err)
	}

	mimeType := file.Mime
	if mimeType == "" {
		mimeType = ContentType(file.Filename())
	}

	upload := tus.NewUploadFromBytes(file.Content)
	upload.Metadata = tus.Metadata{
		"filename":            file.Filename(),
		"filetype":            mimeType,
		"defaulttimestamppct": strconv.FormatFloat(s.timestampPct, 'f', -1, 64),
		"downloadable":        "true",
	}

	s.logger.Debug("starting stream upload", "func", "StreamClient.Upload", "filename", file.Filename(), "size", len(file.Content), "chunkSize", s.chunkSize)

	uploader, err := client.CreateUpload(upload)
	if err != nil {
		return File{}, &TransportError{Op: "stream handshake", Err: err}
	}
	if err := uploader.Upload(); err != nil {
		return File{}, &TransportError{Op: "stream upload", Err: err}
	}

	mediaID := hook.MediaID()
	if mediaID == "" {
		if s.strict {
			return File{}, &ProtocolError{Op: "stream upload", Reason: "response carried no " + mediaIDHeader + " header"}
		}
		s.logger.Warn("upload finished without media id", "func", "StreamClient.Upload", "filename", file.Filename())
		return file, nil
	}

	file.URL = s.PlaybackURL(mediaID)
	file.ProviderMetadata = &ProviderMetadata{
		PublicID: mediaID,
		Source:   SourceStream,
	}
	s.logger.Info("upload finished", "func", "StreamClient.Upload", "publicId", mediaID, "chunks", hook.Chunks())
	return file, nil
}

func (s *StreamClient) Delete(ctx context.Context, mediaID string) error {
	return s.api.remove(ctx, "stream delete", s.api.accountURL("stream", mediaID))
}

// mediaIDHook sees every response of one upload call. The first media id it
// observes is kept; later values are ignored.
type mediaIDHook struct {
	ctx  context.Context
	next http.RoundTripper

	mu      sync.Mutex
	mediaID string
	chunks  int
}

func newMediaIDHook(ctx context.Context, next http.RoundTripper) *mediaIDHook {
	return &mediaIDHook{ctx: ctx, next: next}
}

func (h *mediaIDHook) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := h.next.RoundTrip(req.WithContext(h.ctx))
	if err != nil {
		return nil, err
	}

	normalizeTusStatus(req, resp)

	h.mu.Lock()
	defer h.mu.Unlock()
	if id := resp.Header.Get(mediaIDHeader); id != "" && h.mediaID == "" {
		h.mediaID = id
	}
	if req.Method == http.MethodPatch {
		h.chunks++
		StreamChunksTotal.Inc()
	}
	return resp, nil
}

// normalizeTusStatus maps any 2xx creation or chunk response onto the exact
// status go-tus checks for: 201 for a creation carrying Location, 204 for a chunk.
func normalizeTusStatus(req *http.Request, resp *http.Response) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return
	}
	method := req.Method
	if override := req.Header.Get("X-HTTP-Method-Override"); override != "" {
		method = override
	}
	switch {
	case method == http.MethodPost && resp.Header.Get("Location") != "":
		setStatus(resp, http.StatusCreated)
	case method == http.MethodPatch:
		setStatus(resp, http.StatusNoContent)
	}
}

func setStatus(resp *http.Response, code int) {
	if resp.StatusCode == code {
		return
	}
	resp.StatusCode = code
	resp.Status = fmt.Sprintf("%d %s", code, http.StatusText(code))
}

func (h *mediaIDHook) MediaID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mediaID
}

func (h *mediaIDHook) Chunks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.chunks
}

func transportOf(c *http.Client) http.RoundTripper {
	if c != nil && c.Transport != nil {
		return c.Transport
	}
	return http.DefaultTransport
}
