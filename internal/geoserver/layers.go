package geoserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/clbanning/mxj/v2"

	"github.com/openlibgis/geoporter/internal/envelope"
)

// Layer is one entry in the workspace's WFS capabilities listing.
type Layer struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	CRS      string `json:"crs"`
	Envelope string `json:"envelope"`
}

// FeatureGeometry looks up the geometry class of a published feature type
// and maps it to the catalog's vocabulary (Point, Line, Polygon).
func (c *Client) FeatureGeometry(ctx context.Context, storeName, featureName string) (string, error) {
	ft, err := c.getFeatureType(ctx, storeName, featureName)
	if err != nil {
		return "", err
	}
	for _, attr := range ft.FeatureType.Attributes.Attribute {
		if !strings.Contains(attr.Binding, ".geom.") {
			continue
		}
		class := attr.Binding[strings.LastIndex(attr.Binding, ".")+1:]
		switch class {
		case "Point", "MultiPoint":
			return "Point", nil
		case "LineString", "MultiLineString":
			return "Line", nil
		case "Polygon", "MultiPolygon":
			return "Polygon", nil
		default:
			return class, nil
		}
	}
	return "", fmt.Errorf("no geometry attribute on feature type %s", featureName)
}

type layerBody struct {
	Layer struct {
		DefaultStyle struct {
			Name string `json:"name"`
		} `json:"defaultStyle"`
	} `json:"layer"`
}

// DefaultStyle returns the name of a layer's default style.
func (c *Client) DefaultStyle(ctx context.Context, layerName string) (string, error) {
	url := fmt.Sprintf("%s/rest/layers/%s.json", c.baseURL, layerName)
	bs, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return "", err
	}
	var body layerBody
	if err := json.Unmarshal(bs, &body); err != nil {
		return "", fmt.Errorf("decoding layer %s: %w", layerName, err)
	}
	return body.Layer.DefaultStyle.Name, nil
}

// SetDefaultStyle assigns a layer's default style.
func (c *Client) SetDefaultStyle(ctx context.Context, layerName, styleName string) error {
	url := fmt.Sprintf("%s/rest/layers/%s.json", c.baseURL, layerName)
	body := fmt.Sprintf(`{"layer":{"defaultStyle":{"name":%q}}}`, styleName)
	_, err := c.do(ctx, http.MethodPut, url, "application/json", []byte(body))
	return err
}

type stylesBody struct {
	Styles struct {
		Style []struct {
			Name string `json:"name"`
		} `json:"style"`
	} `json:"styles"`
}

// Styles lists the style names available on the server.
func (c *Client) Styles(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/rest/styles.json", c.baseURL)
	bs, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, err
	}
	var body stylesBody
	if err := json.Unmarshal(bs, &body); err != nil {
		return nil, fmt.Errorf("decoding styles: %w", err)
	}
	names := make([]string, 0, len(body.Styles.Style))
	for _, s := range body.Styles.Style {
		names = append(names, s.Name)
	}
	return names, nil
}

// WorkspaceLayers lists every feature type the workspace advertises in its
// WFS capabilities, with WGS84 envelopes.
func (c *Client) WorkspaceLayers(ctx context.Context) ([]Layer, error) {
	url := fmt.Sprintf("%s/%s/ows?SERVICE=WFS&REQUEST=GetCapabilities",
		c.baseURL, c.workspace)
	bs, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, err
	}

	m, err := mxj.NewMapXml(bs)
	if err != nil {
		return nil, fmt.Errorf("parsing capabilities: %w", err)
	}
	tree := map[string]any(m)

	raw, ok := deepGet(tree, "wfs:WFS_Capabilities", "FeatureTypeList", "FeatureType")
	if !ok {
		return nil, nil
	}

	var layers []Layer
	for _, item := range asList(raw) {
		ft, ok := item.(map[string]any)
		if !ok {
			continue
		}
		layer := Layer{
			Name:  textOf(ft["Name"]),
			Title: textOf(ft["Title"]),
			CRS:   textOf(ft["DefaultCRS"]),
		}
		if bbox, ok := ft["ows:WGS84BoundingBox"].(map[string]any); ok {
			env, err := envelope.CornersToEnvelope(
				textOf(bbox["ows:LowerCorner"]),
				textOf(bbox["ows:UpperCorner"]),
			)
			if err != nil {
				return nil, err
			}
			layer.Envelope = env
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

// LayerEnvelope returns the WGS84 envelope one layer advertises in the
// workspace capabilities.
func (c *Client) LayerEnvelope(ctx context.Context, layerName string) (string, error) {
	layers, err := c.WorkspaceLayers(ctx)
	if err != nil {
		return "", err
	}
	for _, layer := range layers {
		if layer.Name == layerName || strings.TrimPrefix(layer.Name, c.workspace+":") == layerName {
			return layer.Envelope, nil
		}
	}
	return "", fmt.Errorf("%w: layer %s", ErrNotFound, layerName)
}

func deepGet(tree map[string]any, keys ...string) (any, bool) {
	var current any = tree
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["#text"].(string); ok {
			return s
		}
	}
	return ""
}
