package geoserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const capabilitiesXML = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:WFS_Capabilities xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:ows="http://www.opengis.net/ows/1.1">
  <FeatureTypeList>
    <FeatureType>
      <Name>geoportal:parcels</Name>
      <Title>Boulder County Parcels</Title>
      <DefaultCRS>urn:ogc:def:crs:EPSG::4326</DefaultCRS>
      <ows:WGS84BoundingBox>
        <ows:LowerCorner>-109.05 36.99</ows:LowerCorner>
        <ows:UpperCorner>-102.04 41.0</ows:UpperCorner>
      </ows:WGS84BoundingBox>
    </FeatureType>
    <FeatureType>
      <Name>geoportal:roads</Name>
      <Title>Roads</Title>
      <DefaultCRS>urn:ogc:def:crs:EPSG::4326</DefaultCRS>
      <ows:WGS84BoundingBox>
        <ows:LowerCorner>-105.7 39.9</ows:LowerCorner>
        <ows:UpperCorner>-105.1 40.3</ows:UpperCorner>
      </ows:WGS84BoundingBox>
    </FeatureType>
  </FeatureTypeList>
</wfs:WFS_Capabilities>`

func newCapabilitiesServer(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /geoportal/ows", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, capabilitiesXML)
	})
	mux.HandleFunc("GET /rest/layers/{layer}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"layer":{"defaultStyle":{"name":"polygon"}}}`)
	})
	mux.HandleFunc("PUT /rest/layers/{layer}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /rest/styles.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"styles":{"style":[{"name":"polygon"},{"name":"line"},{"name":"raster"}]}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL, "geoportal")
}

func TestWorkspaceLayers(t *testing.T) {
	client := newCapabilitiesServer(t)

	layers, err := client.WorkspaceLayers(context.Background())
	require.NoError(t, err)
	require.Len(t, layers, 2)

	assert.Equal(t, "geoportal:parcels", layers[0].Name)
	assert.Equal(t, "Boulder County Parcels", layers[0].Title)
	assert.Equal(t, "urn:ogc:def:crs:EPSG::4326", layers[0].CRS)
	assert.Equal(t, "ENVELOPE(-109.05,-102.04,41,36.99)", layers[0].Envelope)
}

func TestLayerEnvelope(t *testing.T) {
	client := newCapabilitiesServer(t)
	ctx := context.Background()

	t.Run("qualified name", func(t *testing.T) {
		env, err := client.LayerEnvelope(ctx, "geoportal:roads")
		require.NoError(t, err)
		assert.Equal(t, "ENVELOPE(-105.7,-105.1,40.3,39.9)", env)
	})

	t.Run("unqualified name", func(t *testing.T) {
		env, err := client.LayerEnvelope(ctx, "roads")
		require.NoError(t, err)
		assert.Equal(t, "ENVELOPE(-105.7,-105.1,40.3,39.9)", env)
	})

	t.Run("unknown layer", func(t *testing.T) {
		_, err := client.LayerEnvelope(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDefaultStyle(t *testing.T) {
	client := newCapabilitiesServer(t)

	style, err := client.DefaultStyle(context.Background(), "geoportal:parcels")
	require.NoError(t, err)
	assert.Equal(t, "polygon", style)

	err = client.SetDefaultStyle(context.Background(), "geoportal:parcels", "line")
	assert.NoError(t, err)
}

func TestStyles(t *testing.T) {
	client := newCapabilitiesServer(t)

	styles, err := client.Styles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"polygon", "line", "raster"}, styles)
}
