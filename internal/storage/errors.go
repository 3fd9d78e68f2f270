package storage

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("asset not found")

// TransportError is a network or HTTP failure talking to Cloudflare.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s: API returned status %d: %s", e.Op, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s: API returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports a 404 as ErrNotFound.
func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// ProtocolError means the remote service answered in a shape we cannot use.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Asset names which remote asset a delete targeted.
type Asset string

const (
	AssetVideo Asset = "video"
	AssetImage Asset = "image"
	AssetWebp  Asset = "webp"
)

// DeleteError is returned when removing one asset failed for a reason other than 404.
// Retrying Delete with the same metadata is safe: assets already gone are skipped as 404s.
type DeleteError struct {
	Asset    Asset
	PublicID string
	Err      error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("error deleting %s %s on Cloudflare: %v", e.Asset, e.PublicID, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// DerivativeError is returned when the webp derivative failed under the "fail" policy.
// Primary is the already uploaded original, so the caller can delete it.
type DerivativeError struct {
	Primary File
	Err     error
}

func (e *DerivativeError) Error() string {
	return fmt.Sprintf("webp derivative for %s failed: %v", e.Primary.Filename(), e.Err)
}

func (e *DerivativeError) Unwrap() error {
	return e.Err
}
