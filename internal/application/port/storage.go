package port

import "context"

// AssetStore persists binary receipt assets (images, audio). Upload returns
// a public URL for the stored object.
type AssetStore interface {
	Upload(ctx context.Context, key string, content []byte, contentType string) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
