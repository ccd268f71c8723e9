package internal

import (
	"context"
	"io"
)

// Repository is durable public-facing storage for uploaded archives and
// published metadata documents. Store writes the content under key and
// returns the public URL the content is served from.
type Repository interface {
	Store(ctx context.Context, key string, reader io.Reader) (string, error)

	// URL returns the public URL for a key without writing anything.
	URL(key string) string

	// Exists reports whether a key has already been stored.
	Exists(ctx context.Context, key string) (bool, error)
}
