// Package crosswalk maps heterogeneous source metadata dialects into the
// fixed GeoBlacklight discovery schema.
package crosswalk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal"
	"github.com/openlibgis/geoporter/internal/geoserver"
	"github.com/openlibgis/geoporter/internal/identifier"
	"github.com/openlibgis/geoporter/internal/metadata"
)

const (
	defaultRights         = "Public"
	defaultRightsMetadata = "The organization that has made the Item available believes that the Item is in the Public Domain under the laws of the United States."

	refDownload = "http://schema.org/downloadUrl"
	refWFS      = "http://www.opengis.net/def/serviceType/ogc/wfs"
	refWMS      = "http://www.opengis.net/def/serviceType/ogc/wms"
	refMODS     = "http://www.loc.gov/mods/v3"
)

var htmlTags = regexp.MustCompile(`<[^<]+>`)

// Record is the finalized GeoBlacklight document. Every field is always
// present; list fields are empty rather than null.
type Record struct {
	UUID           string   `json:"uuid" bson:"uuid"`
	Identifier     string   `json:"dc_identifier_s" bson:"dc_identifier_s"`
	Slug           string   `json:"layer_slug_s" bson:"layer_slug_s"`
	Title          string   `json:"dc_title_s" bson:"dc_title_s"`
	Description    string   `json:"dc_description_s" bson:"dc_description_s"`
	Rights         string   `json:"dc_rights_s" bson:"dc_rights_s"`
	RightsMetadata string   `json:"cub_rights_metadata_s" bson:"cub_rights_metadata_s"`
	Provenance     string   `json:"dct_provenance_s" bson:"dct_provenance_s"`
	References     string   `json:"dct_references_s" bson:"dct_references_s"`
	LayerID        string   `json:"layer_id_s" bson:"layer_id_s"`
	GeometryType   string   `json:"layer_geom_type_s" bson:"layer_geom_type_s"`
	Format         string   `json:"dc_format_s" bson:"dc_format_s"`
	Language       string   `json:"dc_language_s" bson:"dc_language_s"`
	Type           string   `json:"dc_type_s" bson:"dc_type_s"`
	Publisher      string   `json:"dc_publisher_s" bson:"dc_publisher_s"`
	Creators       []string `json:"dc_creator_sm" bson:"dc_creator_sm"`
	Subjects       []string `json:"dc_subject_sm" bson:"dc_subject_sm"`
	Issued         string   `json:"dct_issued_s" bson:"dct_issued_s"`
	Created        string   `json:"dct_created_s" bson:"dct_created_s"`
	Temporal       []string `json:"dct_temporal_sm" bson:"dct_temporal_sm"`
	Spatial        []string `json:"dct_spatial_sm" bson:"dct_spatial_sm"`
	Envelope       string   `json:"solr_geom" bson:"solr_geom"`
	Status         string   `json:"status" bson:"status"`
	Style          string   `json:"style" bson:"style"`
	ModImportURL   string   `json:"mod_import_url" bson:"mod_import_url"`
}

// Input is what the engine consumes: the parsed metadata tree (nil when
// the archive carried no sidecar) plus everything earlier stages produced.
type Input struct {
	Tree               map[string]any
	StoreName          string
	FeatureName        string
	ResourceKind       string
	Envelope           string
	ArchiveURL         string
	ExistingIdentifier string
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithProvenance(provenance string) Option {
	return func(e *Engine) {
		e.provenance = provenance
	}
}

// WithMODSPublication configures publication of a descriptive MODS sidecar
// to durable storage; templateURL is fetched when the dataset carries none.
func WithMODSPublication(repository internal.Repository, templateURL string) Option {
	return func(e *Engine) {
		e.repository = repository
		e.modsTemplateURL = templateURL
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = httpClient
	}
}

// Engine composes resolver outputs with publisher and identifier outputs
// into a complete catalog record.
type Engine struct {
	gs       *geoserver.Client
	assigner *identifier.Assigner

	repository      internal.Repository
	modsTemplateURL string
	provenance      string

	httpClient *http.Client
	logger     *zap.Logger
}

func NewEngine(gs *geoserver.Client, assigner *identifier.Assigner, opts ...Option) *Engine {
	e := &Engine{
		gs:         gs,
		assigner:   assigner,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Crosswalk builds the catalog record. Descriptive fields come from the
// metadata tree through ordered fallback; geometry comes from the map
// server, which is authoritative for spatial facts.
func (e *Engine) Crosswalk(ctx context.Context, in Input) (*Record, error) {
	tree := in.Tree
	if tree == nil {
		tree = map[string]any{}
	}

	rec := &Record{
		Rights:         defaultRights,
		RightsMetadata: defaultRightsMetadata,
		Provenance:     e.provenance,
		Language:       "English",
		Type:           "Dataset",
		Status:         "indexed",
		LayerID:        in.StoreName,
		Envelope:       in.Envelope,
	}

	title, err := resolveText(tree, titlePaths)
	if err != nil {
		return nil, err
	}
	rec.Title = title

	assignment, err := e.assigner.Assign(ctx, rec.Title, in.ExistingIdentifier)
	if err != nil {
		return nil, err
	}
	rec.UUID = assignment.UUID
	rec.Identifier = assignment.UUID
	rec.Slug = assignment.Slug

	description, err := resolveText(tree, descriptionPaths)
	if err != nil {
		return nil, err
	}
	rec.Description = htmlTags.ReplaceAllString(description, "")

	if rec.Issued, err = resolveText(tree, issuedPaths); err != nil {
		return nil, err
	}
	if rec.Created, err = resolveText(tree, createdPaths); err != nil {
		return nil, err
	}
	if rec.Publisher, err = e.resolvePublisher(tree); err != nil {
		return nil, err
	}
	if rec.Creators, err = e.resolveCreators(tree); err != nil {
		return nil, err
	}
	if rec.Subjects, err = resolveSubjects(tree); err != nil {
		return nil, err
	}

	spatial, err := metadata.Resolve(tree, spatialPaths, nil)
	if err != nil {
		return nil, err
	}
	rec.Spatial = cleanBlanks(metadata.TextList(spatial))
	rec.Temporal = []string{}

	if err := e.applyGeometry(ctx, rec, in); err != nil {
		return nil, err
	}

	references, err := e.buildReferences(ctx, rec.Slug, in)
	if err != nil {
		return nil, err
	}
	rec.References = references

	if rec.Creators == nil {
		rec.Creators = []string{}
	}
	if rec.Subjects == nil {
		rec.Subjects = []string{}
	}
	if rec.Spatial == nil {
		rec.Spatial = []string{}
	}
	return rec, nil
}

// applyGeometry derives geometry and format from the publisher's resource
// kind, not from metadata. Unreferenced datasets keep the declared
// defaults.
func (e *Engine) applyGeometry(ctx context.Context, rec *Record, in Input) error {
	switch in.ResourceKind {
	case geoserver.KindCoverage:
		rec.GeometryType = "Raster"
		rec.Format = "GeoTiff"
	case geoserver.KindFeatureType:
		geom, err := e.gs.FeatureGeometry(ctx, in.StoreName, in.FeatureName)
		if err != nil {
			return err
		}
		rec.GeometryType = geom
		rec.Format = "Shapefile"
	default:
		return nil
	}

	style, err := e.gs.DefaultStyle(ctx, e.gs.Workspace()+":"+in.StoreName)
	if err != nil {
		e.logger.Warn("default style lookup failed",
			zap.String("store", in.StoreName),
			zap.Error(err))
		return nil
	}
	rec.Style = style
	return nil
}

// buildReferences serializes the reference-links mapping: download URL,
// WFS and WMS endpoints, and the published MODS document when configured.
func (e *Engine) buildReferences(ctx context.Context, slug string, in Input) (string, error) {
	refs := map[string]string{
		refDownload: in.ArchiveURL,
		refWFS:      fmt.Sprintf("%s/%s/wfs", e.gs.BaseURL(), e.gs.Workspace()),
		refWMS:      fmt.Sprintf("%s/%s/wms", e.gs.BaseURL(), e.gs.Workspace()),
	}

	if e.repository != nil && e.modsTemplateURL != "" {
		modsURL, err := e.publishMODS(ctx, slug)
		if err != nil {
			return "", err
		}
		refs[refMODS] = modsURL
	}

	bs, err := json.Marshal(refs)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// publishMODS stores a MODS document for the record under the public
// metadata location and returns its URL.
func (e *Engine) publishMODS(ctx context.Context, slug string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.modsTemplateURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching MODS template: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return e.repository.Store(ctx, "metadata/"+slug+".xml", strings.NewReader(string(body)))
}

func resolveText(tree map[string]any, paths []string) (string, error) {
	v, err := metadata.Resolve(tree, paths, "")
	if err != nil {
		return "", err
	}
	return metadata.Text(v), nil
}

func (e *Engine) resolvePublisher(tree map[string]any) (string, error) {
	if _, isMODS := tree["mods:mods"]; isMODS {
		found := nestedLookup(tree, "mods:publisher")
		if len(found) > 0 {
			return metadata.Text(found[0]), nil
		}
		return "", nil
	}
	return resolveText(tree, publisherPaths)
}

// resolveCreators walks MODS name entries for ones carrying a creator role
// term; other dialects resolve through the ordinary candidate tables.
func (e *Engine) resolveCreators(tree map[string]any) ([]string, error) {
	if _, isMODS := tree["mods:mods"]; isMODS {
		var creators []string
		for _, names := range nestedLookup(tree, "mods:name") {
			for _, name := range asList(names) {
				nameMap, ok := name.(map[string]any)
				if !ok {
					continue
				}
				if hasCreatorRole(nameMap) {
					creators = append(creators, metadata.Text(nameMap["mods:namePart"]))
				}
			}
		}
		return cleanBlanks(creators), nil
	}

	v, err := metadata.Resolve(tree, creatorPaths, nil)
	if err != nil {
		return nil, err
	}
	return cleanBlanks(metadata.TextList(v)), nil
}

func hasCreatorRole(name map[string]any) bool {
	for _, role := range nestedLookup(name, "mods:roleTerm") {
		for _, term := range asList(role) {
			termMap, ok := term.(map[string]any)
			if !ok {
				continue
			}
			if termMap["type"] == "text" && metadata.Text(termMap) == "creator" {
				return true
			}
		}
	}
	return false
}

// resolveSubjects tries the primary keyword container and, when it yields
// nothing, falls back to the secondary container tag. This container-level
// fallback sits one level above the per-field dialect fallback.
func resolveSubjects(tree map[string]any) ([]string, error) {
	container, err := metadata.Resolve(tree, subjectContainerPaths, nil)
	if err != nil {
		return nil, err
	}

	subjects := subjectsFromContainer(container, "themekey")
	if len(subjects) == 0 {
		subjects = subjectsFromContainer(container, "keyword")
	}
	return cleanBlanks(subjects), nil
}

func subjectsFromContainer(container any, tag string) []string {
	var out []string
	for _, item := range asList(container) {
		switch t := item.(type) {
		case nil:
		case string:
			out = append(out, t)
		case map[string]any:
			if text := metadata.Text(t); text != "" && len(t) <= 2 {
				out = append(out, text)
				continue
			}
			out = append(out, metadata.TextList(t[tag])...)
		default:
			out = append(out, metadata.TextList(item)...)
		}
	}
	return out
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if v == nil {
		return nil
	}
	return []any{v}
}
