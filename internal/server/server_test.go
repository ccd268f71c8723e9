package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlibgis/geoporter/internal/catalog"
	"github.com/openlibgis/geoporter/internal/crosswalk"
	"github.com/openlibgis/geoporter/internal/geoserver"
	"github.com/openlibgis/geoporter/internal/pipeline"
)

type fakeIngestor struct {
	lastPath string
	lastOpts pipeline.RunOptions
	record   *pipeline.IngestRecord
	err      error
}

func (f *fakeIngestor) Run(ctx context.Context, archivePath string, opts pipeline.RunOptions) (*pipeline.IngestRecord, error) {
	f.lastPath = archivePath
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

type fakePublisher struct {
	layers    []geoserver.Layer
	styles    map[string]string
	deleteErr error
}

func (f *fakePublisher) WorkspaceLayers(ctx context.Context) ([]geoserver.Layer, error) {
	return f.layers, nil
}

func (f *fakePublisher) DeleteStore(ctx context.Context, storeName string, purge, recurse bool) (string, error) {
	if f.deleteErr != nil {
		return "", f.deleteErr
	}
	return fmt.Sprintf("Store %s deleted.", storeName), nil
}

func (f *fakePublisher) DefaultStyle(ctx context.Context, layerName string) (string, error) {
	style, ok := f.styles[layerName]
	if !ok {
		return "", geoserver.ErrNotFound
	}
	return style, nil
}

func (f *fakePublisher) SetDefaultStyle(ctx context.Context, layerName, styleName string) error {
	f.styles[layerName] = styleName
	return nil
}

type fakeCatalog struct {
	records map[string]*crosswalk.Record
	indexed []crosswalk.Record
}

func (f *fakeCatalog) Upsert(ctx context.Context, record *crosswalk.Record) error {
	f.records[record.Slug] = record
	return nil
}

func (f *fakeCatalog) Get(ctx context.Context, slug string) (*crosswalk.Record, error) {
	record, ok := f.records[slug]
	if !ok {
		return nil, catalog.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakeCatalog) ListIndexed(ctx context.Context) ([]crosswalk.Record, error) {
	return f.indexed, nil
}

func (f *fakeCatalog) Delete(ctx context.Context, slug string) error {
	delete(f.records, slug)
	return nil
}

type fakeSearch struct {
	deletes int
	indexed []any
}

func (f *fakeSearch) Index(ctx context.Context, documents any) error {
	f.indexed = append(f.indexed, documents)
	return nil
}

func (f *fakeSearch) DeleteAll(ctx context.Context) error {
	f.deletes++
	return nil
}

func (f *fakeSearch) Search(ctx context.Context, query string) (map[string]any, error) {
	return map[string]any{"query": query}, nil
}

type fixture struct {
	server    *Server
	ingestor  *fakeIngestor
	publisher *fakePublisher
	catalog   *fakeCatalog
	search    *fakeSearch
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ingestor: &fakeIngestor{
			record: &pipeline.IngestRecord{
				CatalogRecord: &crosswalk.Record{Slug: "47540-x", Title: "Parcels"},
			},
		},
		publisher: &fakePublisher{styles: map[string]string{"parcels": "polygon"}},
		catalog:   &fakeCatalog{records: map[string]*crosswalk.Record{}},
		search:    &fakeSearch{},
	}
	f.server = New(f.ingestor, f.publisher,
		WithCatalog(f.catalog),
		WithSearch(f.search),
		WithUploadDir(t.TempDir()),
	)
	return f
}

func multipartArchive(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "parcels.zip")
	require.NoError(t, err)
	_, err = fw.Write([]byte("zip-bytes"))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestIngestPersistsAndIndexes(t *testing.T) {
	f := newFixture(t)
	body, contentType := multipartArchive(t, map[string]string{
		"force":      "true",
		"identifier": "47540/x",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.ingestor.lastOpts.Force)
	assert.Equal(t, "47540/x", f.ingestor.lastOpts.ExistingIdentifier)
	assert.Contains(t, f.catalog.records, "47540-x")
	assert.Len(t, f.search.indexed, 1)
}

func TestIngestStageFailureReturns422(t *testing.T) {
	f := newFixture(t)
	f.ingestor.err = &pipeline.StageError{
		Stage: pipeline.StageUnpacking,
		Err:   fmt.Errorf("bad archive"),
	}
	body, contentType := multipartArchive(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pipeline.StageUnpacking), payload["stage"])
}

func TestIngestRequiresFile(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListLayers(t *testing.T) {
	f := newFixture(t)
	f.publisher.layers = []geoserver.Layer{{Name: "geoportal:parcels"}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/layers", nil)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Count)
}

func TestStyleRoundTrip(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/layers/parcels/style",
		bytes.NewBufferString(`{"style":"choropleth"}`))
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/layers/parcels/style", nil)
	rec = httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "choropleth")
}

func TestDeleteStoreNotFound(t *testing.T) {
	f := newFixture(t)
	f.publisher.deleteErr = geoserver.ErrNotFound

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/stores/ghost", nil)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRecordNotFound(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/ghost", nil)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReindexClearsThenSubmits(t *testing.T) {
	f := newFixture(t)
	f.catalog.indexed = []crosswalk.Record{
		{Slug: "47540-a", Status: "indexed"},
		{Slug: "47540-b", Status: "indexed"},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reindex", nil)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.search.deletes)
	require.Len(t, f.search.indexed, 1)
	assert.Contains(t, rec.Body.String(), `"indexed":2`)
}

func TestSearchDefaultsToMatchAll(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "*:*")
}
