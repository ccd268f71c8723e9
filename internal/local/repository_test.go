package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryStore(t *testing.T) {
	dir := t.TempDir()
	r := New(dir,
		WithPrefix("datasets"),
		WithPublicURL("https://geo.example.edu/apps/geolibrary/"),
	)

	ctx := context.Background()
	url, err := r.Store(ctx, "parcels.zip", strings.NewReader("zipbytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://geo.example.edu/apps/geolibrary/datasets/parcels.zip", url)

	bs, err := os.ReadFile(filepath.Join(dir, "datasets", "parcels.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zipbytes", string(bs))

	ok, err := r.Exists(ctx, "parcels.zip")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(ctx, "missing.zip")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryURLWithoutPrefix(t *testing.T) {
	r := New(t.TempDir(), WithPublicURL("https://geo.example.edu/datasets"))
	assert.Equal(t, "https://geo.example.edu/datasets/a.zip", r.URL("a.zip"))
}
