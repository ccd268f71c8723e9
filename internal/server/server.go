// Package server exposes the ingestion pipeline and catalog maintenance
// operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/catalog"
	"github.com/openlibgis/geoporter/internal/crosswalk"
	"github.com/openlibgis/geoporter/internal/geoserver"
	"github.com/openlibgis/geoporter/internal/pipeline"
)

// Ingestor runs one archive through the full pipeline.
type Ingestor interface {
	Run(ctx context.Context, archivePath string, opts pipeline.RunOptions) (*pipeline.IngestRecord, error)
}

// Publisher covers the layer maintenance surface of the map server.
type Publisher interface {
	WorkspaceLayers(ctx context.Context) ([]geoserver.Layer, error)
	DeleteStore(ctx context.Context, storeName string, purge, recurse bool) (string, error)
	DefaultStyle(ctx context.Context, layerName string) (string, error)
	SetDefaultStyle(ctx context.Context, layerName, styleName string) error
}

// CatalogStore persists finalized discovery records.
type CatalogStore interface {
	Upsert(ctx context.Context, record *crosswalk.Record) error
	Get(ctx context.Context, slug string) (*crosswalk.Record, error)
	ListIndexed(ctx context.Context) ([]crosswalk.Record, error)
	Delete(ctx context.Context, slug string) error
}

// SearchIndex submits records to and queries the discovery index.
type SearchIndex interface {
	Index(ctx context.Context, documents any) error
	DeleteAll(ctx context.Context) error
	Search(ctx context.Context, query string) (map[string]any, error)
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithCatalog(store CatalogStore) Option {
	return func(s *Server) {
		s.catalog = store
	}
}

func WithSearch(index SearchIndex) Option {
	return func(s *Server) {
		s.search = index
	}
}

func WithUploadDir(dir string) Option {
	return func(s *Server) {
		s.uploadDir = dir
	}
}

type Server struct {
	ingestor  Ingestor
	publisher Publisher
	catalog   CatalogStore
	search    SearchIndex

	uploadDir string
	logger    *zap.Logger
}

func New(ingestor Ingestor, publisher Publisher, opts ...Option) *Server {
	s := &Server{
		ingestor:  ingestor,
		publisher: publisher,
		uploadDir: os.TempDir(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ingest", s.ingest)
		r.Get("/layers", s.listLayers)
		r.Get("/layers/{name}/style", s.getStyle)
		r.Put("/layers/{name}/style", s.setStyle)
		r.Delete("/stores/{name}", s.deleteStore)
		r.Get("/records/{slug}", s.getRecord)
		r.Post("/reindex", s.reindex)
		r.Get("/search", s.searchRecords)
	})

	return r
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "archive upload required in field 'file'", http.StatusBadRequest)
		return
	}
	defer file.Close()

	archivePath := filepath.Join(s.uploadDir, filepath.Base(header.Filename))
	out, err := os.Create(archivePath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out.Close()

	opts := pipeline.RunOptions{
		Force:              r.FormValue("force") == "true",
		ExistingIdentifier: r.FormValue("identifier"),
	}

	record, err := s.ingestor.Run(r.Context(), archivePath, opts)
	if err != nil {
		s.logger.Error("ingest failed",
			zap.String("archive", header.Filename),
			zap.Error(err))
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"stage": string(stageErr.Stage),
				"error": stageErr.Err.Error(),
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.catalog != nil && record.CatalogRecord != nil {
		if err := s.catalog.Upsert(r.Context(), record.CatalogRecord); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if s.search != nil && record.CatalogRecord != nil {
		if err := s.search.Index(r.Context(), []*crosswalk.Record{record.CatalogRecord}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *Server) listLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.publisher.WorkspaceLayers(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"layers": layers,
		"count":  len(layers),
	})
}

func (s *Server) getStyle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	style, err := s.publisher.DefaultStyle(r.Context(), name)
	if err != nil {
		if errors.Is(err, geoserver.ErrNotFound) {
			http.Error(w, "layer not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"layer": name, "style": style})
}

func (s *Server) setStyle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		Style string `json:"style"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Style == "" {
		http.Error(w, "body must carry a style name", http.StatusBadRequest)
		return
	}

	if err := s.publisher.SetDefaultStyle(r.Context(), name, body.Style); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"layer": name, "style": body.Style})
}

func (s *Server) deleteStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	purge := r.URL.Query().Get("purge") == "true"
	recurse := r.URL.Query().Get("recurse") == "true"

	message, err := s.publisher.DeleteStore(r.Context(), name, purge, recurse)
	if err != nil {
		if errors.Is(err, geoserver.ErrNotFound) {
			http.Error(w, "store not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	s.logger.Info("store deleted via API", zap.String("store", name))
	writeJSON(w, http.StatusOK, map[string]string{"store": name, "message": message})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		http.Error(w, "catalog not configured", http.StatusServiceUnavailable)
		return
	}

	slug := chi.URLParam(r, "slug")
	record, err := s.catalog.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, catalog.ErrRecordNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// reindex rebuilds the search index from the catalog: every indexed record
// is collected, the index is cleared, and the full set is resubmitted.
func (s *Server) reindex(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil || s.search == nil {
		http.Error(w, "catalog and search must be configured", http.StatusServiceUnavailable)
		return
	}

	records, err := s.catalog.ListIndexed(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.search.DeleteAll(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if len(records) > 0 {
		if err := s.search.Index(r.Context(), records); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	}

	s.logger.Info("search index rebuilt", zap.Int("records", len(records)))
	writeJSON(w, http.StatusOK, map[string]any{"indexed": len(records)})
}

func (s *Server) searchRecords(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		http.Error(w, "search not configured", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		query = "*:*"
	}

	result, err := s.search.Search(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	s.logger.Info("starting server", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server")
		srv.Shutdown(context.Background())
	}()

	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
