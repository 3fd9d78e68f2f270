package storage

import (
	"context"
)

// Provider defines the storage provider capability the host plugs in.
// Any implementation of Upload and Delete is substitutable.
type Provider interface {
	// Upload sends the file to the remote service matching its media kind.
	// The returned File supersedes the input: it carries URL and ProviderMetadata.
	Upload(ctx context.Context, file File) (File, error)

	// Delete removes every remote asset referenced by file.ProviderMetadata.
	// A file without metadata is a no-op.
	Delete(ctx context.Context, file File) error
}

// File is the host's file record.
type File struct {
	Name    string
	Hash    string
	Ext     string
	Mime    string
	Size    int64
	Content []byte

	URL              string
	ProviderMetadata *ProviderMetadata
}

// Filename is the name the asset is uploaded under.
func (f File) Filename() string {
	return f.Hash + f.Ext
}

const SourceStream = "stream"

// ProviderMetadata holds everything required to delete the asset later.
type ProviderMetadata struct {
	PublicID     string              `json:"public_id"`
	ResourceType string              `json:"resource_type,omitempty"`
	Source       string              `json:"source,omitempty"`
	Webp         *DerivativeMetadata `json:"webp,omitempty"`
}

// DerivativeMetadata describes the webp copy of an image asset.
type DerivativeMetadata struct {
	URL          string `json:"url"`
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"`
}

func (m *ProviderMetadata) IsStream() bool {
	return m != nil && m.Source == SourceStream
}

func (m *ProviderMetadata) clone() *ProviderMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Webp != nil {
		w := *m.Webp
		c.Webp = &w
	}
	return &c
}
