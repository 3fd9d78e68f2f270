package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
)

// ImagesClient uploads to Cloudflare Images with a single multipart request.
type ImagesClient struct {
	api    *apiClient
	logger *slog.Logger
}

// ImageResult is what the Images API tells us about a stored image.
type ImageResult struct {
	PublicID     string
	ResourceType string
	URL          string // first variant URL, before normalization
}

type imagesEnvelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result *struct {
		ID       string   `json:"id"`
		Filename string   `json:"filename"`
		Variants []string `json:"variants"`
	} `json:"result"`
}

func NewImagesClient(cfg Config) *ImagesClient {
	cfg = cfg.withDefaults()
	return &ImagesClient{
		api: &apiClient{
			baseURL:    cfg.APIBaseURL,
			accountID:  cfg.AccountID,
			apiKey:     cfg.APIKey,
			httpClient: cfg.HTTPClient,
		},
		logger: cfg.Logger,
	}
}

func (c *ImagesClient) Upload(ctx context.Context, content []byte, filename string) (ImageResult, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return ImageResult{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return ImageResult{}, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := form.Close(); err != nil {
		return ImageResult{}, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.accountURL("images", "v1"), body)
	if err != nil {
		return ImageResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.api.authorize(req)
	req.Header.Set("Content-Type", form.FormDataContentType())

	c.logger.Debug("uploading image", "func", "ImagesClient.Upload", "filename", filename, "size", len(content))

	resp, err := c.api.httpClient.Do(req)
	if err != nil {
		return ImageResult{}, &TransportError{Op: "image upload", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("image upload", resp); err != nil {
		return ImageResult{}, err
	}

	var envelope imagesEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return ImageResult{}, &ProtocolError{Op: "image upload", Reason: fmt.Sprintf("failed to decode response: %v", err)}
	}
	if !envelope.Success {
		reason := "API reported failure"
		if len(envelope.Errors) > 0 {
			reason = fmt.Sprintf("API error %d: %s", envelope.Errors[0].Code, envelope.Errors[0].Message)
		}
		return ImageResult{}, &ProtocolError{Op: "image upload", Reason: reason}
	}
	if envelope.Result == nil || envelope.Result.ID == "" {
		return ImageResult{}, &ProtocolError{Op: "image upload", Reason: "response has no result id"}
	}
	if len(envelope.Result.Variants) == 0 {
		return ImageResult{}, &ProtocolError{Op: "image upload", Reason: "response has no variants"}
	}

	return ImageResult{
		PublicID:     envelope.Result.ID,
		ResourceType: resourceType(envelope.Result.Filename),
		URL:          envelope.Result.Variants[0],
	}, nil
}

func (c *ImagesClient) Delete(ctx context.Context, imageID string) error {
	return c.api.remove(ctx, "image delete", c.api.accountURL("images", "v1", imageID))
}

// resourceType is the suffix after the last dot, or "" when there is none.
func resourceType(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return filename[i+1:]
}
