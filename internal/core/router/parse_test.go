package router

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
)

func TestParseBBOX_Valid(t *testing.T) {
	bb, err := parseBBOX("11.0,55.0,12.0,56.0,EPSG:4326")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := model.BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"}
	if bb != want {
		t.Fatalf("got %+v want %+v", bb, want)
	}
}

func TestParseBBOX_InvalidSRID(t *testing.T) {
	if _, err := parseBBOX("11,55,12,56,EPSG:3857"); err == nil {
		t.Fatal("expected error for SRID")
	}
}

func TestParseBBOX_InvalidGeometry(t *testing.T) {
	if _, err := parseBBOX("11,55,11,56,EPSG:4326"); err == nil {
		t.Fatalf("expected error for non-increasing bbox coordinates")
	}
}

func TestParsePolygon_TypeChecks(t *testing.T) {
	if _, err := parsePolygon(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := parsePolygon(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]]]}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := parsePolygon(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`); err == nil {
		t.Fatal("expected error for non-polygon type")
	}
}

func TestParseCellsRequest_PolygonPrecedence(t *testing.T) {
	poly := `{"type":"Polygon","coordinates":[[[11,55],[12,55],[12,56],[11,56],[11,55]]]}`
	req := httptest.NewRequest(http.MethodGet, "/v1/cells", nil)
	q := url.Values{}
	q.Set("precision", "8")
	q.Set("bbox", "11,55,12,56,EPSG:4326")
	q.Set("polygon", poly)
	req.URL.RawQuery = q.Encode()

	got, warn, err := ParseCellsRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warn == "" {
		t.Fatalf("expected non-empty warning when both bbox and polygon provided")
	}
	if got.Polygon == nil || got.BBox != nil {
		t.Fatalf("expected polygon only, got %+v", got)
	}
	if got.Precision != 8 {
		t.Fatalf("precision=%d", got.Precision)
	}
}

func TestParsePrecision(t *testing.T) {
	for _, ok := range []string{"0", "1", " 16 ", "23"} {
		if _, err := parsePrecision(ok); err != nil {
			t.Fatalf("%q: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "-1", "24", "1.5", "abc", "300"} {
		if _, err := parsePrecision(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
