package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// apiClient holds what every Cloudflare v4 call needs.
type apiClient struct {
	baseURL    string
	accountID  string
	apiKey     string
	httpClient *http.Client
}

func (c *apiClient) accountURL(parts ...string) string {
	return c.baseURL + "/accounts/" + c.accountID + "/" + strings.Join(parts, "/")
}

func (c *apiClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// remove issues a DELETE and maps any non-2xx status to a TransportError.
func (c *apiClient) remove(ctx context.Context, op, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, resp); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &TransportError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		Err:        fmt.Errorf("unexpected status %s", resp.Status),
	}
}
