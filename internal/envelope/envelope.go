// Package envelope converts between the bounding-box representations used
// across the pipeline: OWS corner pairs, GeoServer native four-tuple bboxes,
// and the search index's ENVELOPE(west,east,north,south) syntax.
package envelope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedCoordinate = errors.New("malformed coordinate pair")

// BBox is a WGS84 rectangle in fixed corner order.
type BBox struct {
	West  float64
	East  float64
	North float64
	South float64
}

// String renders the index's spatial-extent syntax. Numbers are formatted
// with the shortest representation that round-trips, so the envelope carries
// exactly what the server reported.
func (b BBox) String() string {
	return fmt.Sprintf("ENVELOPE(%s,%s,%s,%s)",
		formatCoord(b.West),
		formatCoord(b.East),
		formatCoord(b.North),
		formatCoord(b.South),
	)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// CornersToEnvelope builds an envelope from the OWS lower/upper corner
// strings found in WFS capabilities documents. Each corner is two
// space-separated numbers, "lon lat".
func CornersToEnvelope(lowerCorner, upperCorner string) (string, error) {
	west, south, err := parseCorner(lowerCorner)
	if err != nil {
		return "", err
	}
	east, north, err := parseCorner(upperCorner)
	if err != nil {
		return "", err
	}
	return BBox{West: west, East: east, North: north, South: south}.String(), nil
}

// BBoxToEnvelope builds an envelope from a [minx, miny, maxx, maxy] tuple,
// GeoServer's native lat/lon bbox order.
func BBoxToEnvelope(bbox [4]float64) string {
	return BBox{
		West:  bbox[0],
		East:  bbox[2],
		North: bbox[3],
		South: bbox[1],
	}.String()
}

func parseCorner(corner string) (lon, lat float64, err error) {
	parts := strings.Fields(corner)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, corner)
	}
	lon, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, corner)
	}
	lat, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, corner)
	}
	return lon, lat, nil
}
