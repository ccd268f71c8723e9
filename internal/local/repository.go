package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type Option func(*Repository)

// Repository serves a filesystem directory that a web server fronts.
type Repository struct {
	basePath  string
	prefix    string
	publicURL string
	logger    *zap.Logger
}

func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

func WithPublicURL(url string) Option {
	return func(r *Repository) {
		r.publicURL = strings.TrimSuffix(url, "/")
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

func New(basePath string, opts ...Option) *Repository {
	r := &Repository{
		basePath: basePath,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Store(ctx context.Context, key string, reader io.Reader) (string, error) {
	fullPath := filepath.Join(
		r.basePath,
		r.prefix,
		key,
	)
	r.logger.Info("storing file", zap.String("path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", err
	}
	return r.URL(key), nil
}

func (r *Repository) URL(key string) string {
	segments := []string{r.publicURL}
	if r.prefix != "" {
		segments = append(segments, r.prefix)
	}
	segments = append(segments, key)
	return strings.Join(segments, "/")
}

func (r *Repository) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(r.basePath, r.prefix, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
