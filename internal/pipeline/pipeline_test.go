package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlibgis/geoporter/internal/archive"
	"github.com/openlibgis/geoporter/internal/crosswalk"
	"github.com/openlibgis/geoporter/internal/geoserver"
	"github.com/openlibgis/geoporter/internal/identifier"
	"github.com/openlibgis/geoporter/internal/local"
)

const testFeatureTypeJSON = `{
  "featureType": {
    "name": "parcels",
    "latLonBoundingBox": {"minx": -109.05, "maxx": -102.04, "miny": 36.99, "maxy": 41},
    "attributes": {
      "attribute": [{"name": "the_geom", "binding": "org.locationtech.jts.geom.MultiPolygon"}]
    }
  }
}`

type testHarness struct {
	pipeline    *Pipeline
	uploads     string
	storeExists bool
	dataUploads int
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{uploads: t.TempDir()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/workspaces/geoportal/datastores/{store}", func(w http.ResponseWriter, r *http.Request) {
		if !h.storeExists {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"dataStore":{"name":%q}}`, r.PathValue("store"))
	})
	mux.HandleFunc("PUT /rest/workspaces/geoportal/datastores/{store}/file.shp", func(w http.ResponseWriter, r *http.Request) {
		h.storeExists = true
		h.dataUploads++
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("PUT /rest/workspaces/geoportal/datastores/{store}/featuretypes/{ft}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /rest/workspaces/geoportal/datastores/{store}/featuretypes/{ft}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testFeatureTypeJSON)
	})
	mux.HandleFunc("GET /rest/layers/{layer}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"layer":{"defaultStyle":{"name":"polygon"}}}`)
	})
	gsrv := httptest.NewServer(mux)
	t.Cleanup(gsrv.Close)

	arkMux := http.NewServeMux()
	arkSrv := httptest.NewServer(arkMux)
	t.Cleanup(arkSrv.Close)
	arkMux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"results":[{"ark":"47540/ws155d","ark-detail":"%s/detail"}]}`, arkSrv.URL)
	})
	arkMux.HandleFunc("PUT /detail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	repo := local.New(t.TempDir(),
		local.WithPrefix("datasets"),
		local.WithPublicURL("https://geo.example.edu/apps/geolibrary"),
	)
	detector := archive.NewDetector(t.TempDir(), archive.WithRepository(repo))
	publisher := geoserver.New(gsrv.URL, "geoportal")
	assigner := identifier.New(arkSrv.URL, "tok", "https://geo.example.edu/catalog/")
	engine := crosswalk.NewEngine(publisher, assigner,
		crosswalk.WithProvenance("Example University"))

	h.pipeline = New(
		WithDetector(detector),
		WithPublisher(publisher),
		WithEngine(engine),
	)
	return h
}

func (h *testHarness) buildZip(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(h.uploads, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for fname, content := range files {
		fw, err := w.Create(fname)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func shapefileArchive() map[string]string {
	return map[string]string{
		"parcels.shp": "shp",
		"parcels.shx": "shx",
		"parcels.dbf": "dbf",
		"parcels.prj": "prj",
	}
}

func TestRunVectorArchive(t *testing.T) {
	h := newHarness(t)
	zipPath := h.buildZip(t, "parcels.zip", shapefileArchive())

	record, err := h.pipeline.Run(context.Background(), zipPath, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, archive.TypeVector, record.DatasetType)
	assert.True(t, record.FreshExtraction)
	assert.Equal(t, "parcels", record.StoreName)
	assert.Equal(t, geoserver.KindFeatureType, record.ResourceKind)
	assert.Contains(t, record.StatusMessage(), "Initial upload")

	require.NotNil(t, record.CatalogRecord)
	assert.Equal(t, "Shapefile", record.CatalogRecord.Format)
	assert.Equal(t, "Polygon", record.CatalogRecord.GeometryType)
	assert.Equal(t, "ENVELOPE(-109.05,-102.04,41,36.99)", record.CatalogRecord.Envelope)
	assert.Equal(t, "47540-ws155d", record.CatalogRecord.Slug)
}

func TestRunUnreferencedArchive(t *testing.T) {
	h := newHarness(t)
	zipPath := h.buildZip(t, "scans.zip", map[string]string{"scan.png": "png"})

	record, err := h.pipeline.Run(context.Background(), zipPath, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, archive.TypeUnreferenced, record.DatasetType)
	assert.Empty(t, record.PrimaryDataFile)
	assert.Empty(t, record.ResourceKind)
	assert.Contains(t, record.StatusMessage(), "not georeferenced")

	require.NotNil(t, record.CatalogRecord)
	assert.Empty(t, record.CatalogRecord.GeometryType)
	assert.Empty(t, record.CatalogRecord.Format)
	assert.Empty(t, record.CatalogRecord.Envelope)
}

func TestRunReingestWithoutForce(t *testing.T) {
	h := newHarness(t)

	zipPath := h.buildZip(t, "parcels.zip", shapefileArchive())
	first, err := h.pipeline.Run(context.Background(), zipPath, RunOptions{})
	require.NoError(t, err)

	zipPath = h.buildZip(t, "parcels.zip", shapefileArchive())
	second, err := h.pipeline.Run(context.Background(), zipPath, RunOptions{
		ExistingIdentifier: "47540/ws155d",
	})
	require.NoError(t, err)

	assert.False(t, second.FreshExtraction)
	assert.Contains(t, second.StatusMessage(), "previously uploaded")
	assert.Equal(t, first.StoreName, second.StoreName)
	require.NotNil(t, second.CatalogRecord)
	assert.Equal(t, first.CatalogRecord.Slug, second.CatalogRecord.Slug)

	// the second run must leave the published store's data untouched
	assert.Equal(t, 1, h.dataUploads)
	assert.Contains(t, second.StatusMessage(), "already exists")
}

func TestRunStoreConflictContinues(t *testing.T) {
	h := newHarness(t)
	h.storeExists = true
	zipPath := h.buildZip(t, "parcels.zip", shapefileArchive())

	record, err := h.pipeline.Run(context.Background(), zipPath, RunOptions{})
	require.NoError(t, err)

	assert.Contains(t, record.StatusMessage(), "already exists")
	assert.Zero(t, h.dataUploads)
	assert.Equal(t, "ENVELOPE(-109.05,-102.04,41,36.99)", record.PublishedEnvelope)
	require.NotNil(t, record.CatalogRecord)
	assert.Equal(t, record.PublishedEnvelope, record.CatalogRecord.Envelope)
}

func TestRunFailureCarriesStage(t *testing.T) {
	h := newHarness(t)
	missing := filepath.Join(h.uploads, "missing.zip")

	_, err := h.pipeline.Run(context.Background(), missing, RunOptions{})
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageUnpacking, stageErr.Stage)
}
