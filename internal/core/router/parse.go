package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

// CellsRequest is a parsed /v1/cells query. Exactly one of BBox and Polygon is set.
type CellsRequest struct {
	Precision int
	BBox      *model.BBox
	Polygon   *model.Polygon
}

// ParseCellsRequest returns a warning when both bbox and polygon are given; the
// polygon wins.
func ParseCellsRequest(r *http.Request) (CellsRequest, string, error) {
	var warn string
	q := r.URL.Query()

	p, err := parsePrecision(q.Get("precision"))
	if err != nil {
		return CellsRequest{}, "", err
	}

	rawBBox := strings.TrimSpace(q.Get("bbox"))
	rawPoly := strings.TrimSpace(q.Get("polygon"))
	if rawBBox != "" && rawPoly != "" {
		warn = "both bbox and polygon supplied; preferring polygon"
		rawBBox = ""
	}

	out := CellsRequest{Precision: int(p)}
	switch {
	case rawPoly != "":
		poly, err := parsePolygon(rawPoly)
		if err != nil {
			return CellsRequest{}, warn, fmt.Errorf("invalid polygon: %w", err)
		}
		out.Polygon = &poly
	case rawBBox != "":
		bb, err := parseBBOX(rawBBox)
		if err != nil {
			return CellsRequest{}, warn, fmt.Errorf("invalid bbox: %w", err)
		}
		out.BBox = &bb
	default:
		return CellsRequest{}, warn, errors.New("one of bbox or polygon is required")
	}
	return out, warn, nil
}

func parseBBOX(bboxParam string) (model.BBox, error) {
	parts := strings.Split(bboxParam, ",")
	if len(parts) != 5 {
		return model.BBox{}, errors.New("expected 5 comma-separated values: x1,y1,x2,y2,EPSG:4326")
	}
	xMin, err := parseFloat(parts[0])
	if err != nil {
		return model.BBox{}, fmt.Errorf("x1: %w", err)
	}
	yMin, err := parseFloat(parts[1])
	if err != nil {
		return model.BBox{}, fmt.Errorf("y1: %w", err)
	}
	xMax, err := parseFloat(parts[2])
	if err != nil {
		return model.BBox{}, fmt.Errorf("x2: %w", err)
	}
	yMax, err := parseFloat(parts[3])
	if err != nil {
		return model.BBox{}, fmt.Errorf("y2: %w", err)
	}

	srid := strings.ToUpper(strings.TrimSpace(parts[4]))
	if srid != "EPSG:4326" {
		return model.BBox{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", srid)
	}

	if !(xMin >= -180 && xMin <= 180 && xMax >= -180 && xMax <= 180) {
		return model.BBox{}, errors.New("longitude must be in [-180,180]")
	}
	if !(yMin >= -90 && yMin <= 90 && yMax >= -90 && yMax <= 90) {
		return model.BBox{}, errors.New("latitude must be in [-90,90]")
	}
	if xMax <= xMin || yMax <= yMin {
		return model.BBox{}, errors.New("coordinates must satisfy x2>x1 and y2>y1")
	}
	return model.BBox{X1: xMin, Y1: yMin, X2: xMax, Y2: yMax, SRID: srid}, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func parsePolygon(raw string) (model.Polygon, error) {
	var tmp struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return model.Polygon{}, fmt.Errorf("parse json: %w", err)
	}
	t := strings.TrimSpace(tmp.Type)
	switch t {
	case "Polygon", "MultiPolygon":
		return model.Polygon{GeoJSON: raw}, nil
	default:
		return model.Polygon{}, fmt.Errorf(`unsupported GeoJSON "type": %q (must be Polygon or MultiPolygon)`, t)
	}
}

// parseLatLon accepts any finite values; the codec clips them into range.
func parseLatLon(r *http.Request) (lat, lon float64, err error) {
	q := r.URL.Query()
	if lat, err = parseCoord("lat", q.Get("lat")); err != nil {
		return 0, 0, err
	}
	if lon, err = parseCoord("lon", q.Get("lon")); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func parseCoord(name, raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	f, err := parseFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a finite number", name)
	}
	return f, nil
}

func parsePrecision(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("missing required parameter: precision")
	}
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil || n > quadkey.MaxPixelPrecision {
		return 0, fmt.Errorf("precision must be an integer in [0,%d]", quadkey.MaxPixelPrecision)
	}
	return uint(n), nil
}
