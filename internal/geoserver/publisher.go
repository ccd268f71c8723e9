package geoserver

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/envelope"
)

const (
	declaredSRS      = "EPSG:4326"
	projectionPolicy = "REPROJECT_TO_DECLARED"
)

// PublishResult reports the outcome of a store publication: the bounding
// box the server computed and the kind of resource backing the layer.
type PublishResult struct {
	StoreName    string
	FeatureName  string
	ResourceKind string
	BoundingBox  envelope.BBox
	Envelope     string
	Message      string
}

type latLonBoundingBox struct {
	MinX float64 `json:"minx"`
	MaxX float64 `json:"maxx"`
	MinY float64 `json:"miny"`
	MaxY float64 `json:"maxy"`
}

func (b latLonBoundingBox) toBBox() envelope.BBox {
	return envelope.BBox{West: b.MinX, East: b.MaxX, North: b.MaxY, South: b.MinY}
}

type featureTypeBody struct {
	FeatureType struct {
		Name              string            `json:"name"`
		SRS               string            `json:"srs"`
		ProjectionPolicy  string            `json:"projectionPolicy"`
		LatLonBoundingBox latLonBoundingBox `json:"latLonBoundingBox"`
		Attributes        struct {
			Attribute attributeList `json:"attribute"`
		} `json:"attributes"`
	} `json:"featureType"`
}

type attributeDef struct {
	Name    string `json:"name"`
	Binding string `json:"binding"`
}

// attributeList tolerates the server collapsing single-element lists into
// a bare object.
type attributeList []attributeDef

func (a *attributeList) UnmarshalJSON(bs []byte) error {
	var list []attributeDef
	if err := json.Unmarshal(bs, &list); err == nil {
		*a = list
		return nil
	}
	var single attributeDef
	if err := json.Unmarshal(bs, &single); err != nil {
		return err
	}
	*a = attributeList{single}
	return nil
}

type coverageBody struct {
	Coverage struct {
		Name              string            `json:"name"`
		LatLonBoundingBox latLonBoundingBox `json:"latLonBoundingBox"`
	} `json:"coverage"`
}

// PublishVector creates a feature store from the shapefile family and
// returns the server-computed bounding box. An existing store of the same
// name is treated as already published: its data is left untouched, the
// conflict is recorded in the result message, and publication continues
// against the existing resource.
func (c *Client) PublishVector(ctx context.Context, storeName, shapefilePath string) (*PublishResult, error) {
	result := &PublishResult{
		StoreName:    storeName,
		FeatureName:  baseName(shapefilePath),
		ResourceKind: KindFeatureType,
	}

	storeURL := fmt.Sprintf("%s/rest/workspaces/%s/datastores/%s",
		c.baseURL, c.workspace, storeName)

	// The file.shp upload overwrites store data unconditionally, so probe
	// for the store first and only upload when it does not exist yet.
	_, err := c.do(ctx, http.MethodGet, storeURL+".json", "", nil)
	switch {
	case err == nil:
		result.Message = fmt.Sprintf("%v: store %q in workspace %q, existing data kept",
			ErrStoreConflict, storeName, c.workspace)
		c.logger.Info("feature store already exists, skipping data upload",
			zap.String("store", storeName))
	case errors.Is(err, ErrNotFound):
		family, err := zipShapefileFamily(shapefilePath)
		if err != nil {
			return nil, err
		}
		if _, err := c.do(ctx, http.MethodPut, storeURL+"/file.shp", "application/zip", family); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	// The resource must exist before its projection policy can change, so
	// declare the SRS and update the policy as two separate saves.
	if err := c.saveFeatureType(ctx, storeName, result.FeatureName,
		fmt.Sprintf(`{"featureType":{"srs":%q}}`, declaredSRS)); err != nil {
		return nil, err
	}
	if err := c.saveFeatureType(ctx, storeName, result.FeatureName,
		fmt.Sprintf(`{"featureType":{"projectionPolicy":%q}}`, projectionPolicy)); err != nil {
		return nil, err
	}

	ft, err := c.getFeatureType(ctx, storeName, result.FeatureName)
	if err != nil {
		return nil, err
	}

	result.BoundingBox = ft.FeatureType.LatLonBoundingBox.toBBox()
	result.Envelope = envelope.BBoxToEnvelope([4]float64{
		result.BoundingBox.West,
		result.BoundingBox.South,
		result.BoundingBox.East,
		result.BoundingBox.North,
	})
	return result, nil
}

// PublishRaster creates or reuses a coverage store for the image, then
// asks the server to recalculate native and lat/lon bounding boxes; the
// creation call alone does not compute them.
func (c *Client) PublishRaster(ctx context.Context, storeName, filePath string) (*PublishResult, error) {
	result := &PublishResult{
		StoreName:    storeName,
		FeatureName:  baseName(filePath),
		ResourceKind: KindCoverage,
	}

	storeURL := fmt.Sprintf("%s/rest/workspaces/%s/coveragestores/%s",
		c.baseURL, c.workspace, storeName)
	storeBody := fmt.Sprintf(
		`{"coverageStore":{"name":%q,"workspace":%q,"type":"GeoTIFF","enabled":true,"url":"file:%s"}}`,
		storeName, c.workspace, filePath)

	_, err := c.do(ctx, http.MethodGet, storeURL+".json", "", nil)
	switch {
	case err == nil:
		result.Message = "Coverage store already existed. Updated existing store."
		if _, err := c.do(ctx, http.MethodPut, storeURL, "application/json", []byte(storeBody)); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		createURL := fmt.Sprintf("%s/rest/workspaces/%s/coveragestores",
			c.baseURL, c.workspace)
		if _, err := c.do(ctx, http.MethodPost, createURL, "application/json", []byte(storeBody)); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	coverageName := result.FeatureName
	coveragesURL := storeURL + "/coverages.json"
	coverageJSON := fmt.Sprintf(
		`{"coverage":{"name":%q,"nativeCoverageName":%q,"srs":%q,"projectionPolicy":%q}}`,
		coverageName, coverageName, declaredSRS, projectionPolicy)
	if _, err := c.do(ctx, http.MethodPost, coveragesURL, "application/json", []byte(coverageJSON)); err != nil {
		if !errors.Is(err, ErrStoreConflict) {
			return nil, err
		}
	}

	recalcURL := fmt.Sprintf("%s/coverages/%s.json?recalculate=nativebbox,latlonbbox",
		storeURL, coverageName)
	if _, err := c.do(ctx, http.MethodPut, recalcURL, "application/json",
		[]byte(`{"coverage":{"enabled":true}}`)); err != nil {
		return nil, err
	}

	bs, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/coverages/%s.json", storeURL, coverageName), "", nil)
	if err != nil {
		return nil, err
	}
	var cov coverageBody
	if err := json.Unmarshal(bs, &cov); err != nil {
		return nil, fmt.Errorf("decoding coverage %s: %w", coverageName, err)
	}

	result.BoundingBox = cov.Coverage.LatLonBoundingBox.toBBox()
	result.Envelope = envelope.BBoxToEnvelope([4]float64{
		result.BoundingBox.West,
		result.BoundingBox.South,
		result.BoundingBox.East,
		result.BoundingBox.North,
	})
	return result, nil
}

// DeleteStore removes a data or coverage store. purge also deletes the
// underlying data files; recurse removes dependent catalog objects.
func (c *Client) DeleteStore(ctx context.Context, storeName string, purge, recurse bool) (string, error) {
	query := fmt.Sprintf("?recurse=%t&purge=%t", recurse, purge)

	url := fmt.Sprintf("%s/rest/workspaces/%s/datastores/%s%s",
		c.baseURL, c.workspace, storeName, query)
	_, err := c.do(ctx, http.MethodDelete, url, "", nil)
	if errors.Is(err, ErrNotFound) {
		url = fmt.Sprintf("%s/rest/workspaces/%s/coveragestores/%s%s",
			c.baseURL, c.workspace, storeName, query)
		_, err = c.do(ctx, http.MethodDelete, url, "", nil)
	}
	if err != nil {
		return "", err
	}

	detail := "only metadata items removed."
	if purge {
		detail = "metadata and data files removed."
	}
	return fmt.Sprintf("Store %s deleted: %s", storeName, detail), nil
}

func (c *Client) saveFeatureType(ctx context.Context, storeName, featureName, body string) error {
	url := fmt.Sprintf("%s/rest/workspaces/%s/datastores/%s/featuretypes/%s",
		c.baseURL, c.workspace, storeName, featureName)
	_, err := c.do(ctx, http.MethodPut, url, "application/json", []byte(body))
	return err
}

func (c *Client) getFeatureType(ctx context.Context, storeName, featureName string) (*featureTypeBody, error) {
	url := fmt.Sprintf("%s/rest/workspaces/%s/datastores/%s/featuretypes/%s.json",
		c.baseURL, c.workspace, storeName, featureName)
	bs, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, err
	}
	var ft featureTypeBody
	if err := json.Unmarshal(bs, &ft); err != nil {
		return nil, fmt.Errorf("decoding feature type %s: %w", featureName, err)
	}
	return &ft, nil
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// zipShapefileFamily bundles the data file and every sidecar sharing its
// base name (.shx, .dbf, .prj, ...) into an in-memory zip for upload.
func zipShapefileFamily(shapefilePath string) ([]byte, error) {
	dir := filepath.Dir(shapefilePath)
	base := baseName(shapefilePath)

	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files found for shapefile %s", shapefilePath)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, match := range matches {
		if err := addFileToZip(w, match); err != nil {
			w.Close()
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFileToZip(w *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entry, err := w.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}
