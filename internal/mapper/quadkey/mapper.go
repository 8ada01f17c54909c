package qkmapper

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

const defaultMaxCells = 4096

type Mapper struct {
	maxCells int
}

func New(maxCells int) *Mapper {
	if maxCells <= 0 {
		maxCells = defaultMaxCells
	}
	return &Mapper{maxCells: maxCells}
}

func (m *Mapper) CellsForBBox(bb model.BBox, precision int) (model.Cells, error) {
	if err := validatePrecision(precision); err != nil {
		return nil, err
	}
	r := tileRangeFor(bb.X1, bb.Y1, bb.X2, bb.Y2, uint(precision))
	if err := m.checkBudget(r.count()); err != nil {
		return nil, err
	}

	out := make([]string, 0, r.count())
	r.each(func(tx, ty int32) {
		out = append(out, quadkey.TileToQuadkey(tx, ty, uint(precision)))
	})
	sort.Strings(out)
	return out, nil
}

// CellsForPolygon returns the cells whose centre lies inside a GeoJSON Polygon or
// MultiPolygon. A polygon too small to contain any centre yields the cell holding its
// first vertex.
func (m *Mapper) CellsForPolygon(poly model.Polygon, precision int) (model.Cells, error) {
	if err := validatePrecision(precision); err != nil {
		return nil, err
	}

	g, err := geojson.UnmarshalGeometry([]byte(poly.GeoJSON))
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	var (
		contains func(orb.Point) bool
		anchor   orb.Point
	)
	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		if err := checkPolygon(geom); err != nil {
			return nil, err
		}
		contains = func(p orb.Point) bool { return planar.PolygonContains(geom, p) }
		anchor = geom[0][0]
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return nil, errors.New("empty multipolygon")
		}
		for i, p := range geom {
			if err := checkPolygon(p); err != nil {
				return nil, fmt.Errorf("polygon %d: %w", i, err)
			}
		}
		contains = func(p orb.Point) bool { return planar.MultiPolygonContains(geom, p) }
		anchor = geom[0][0][0]
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type: %s", g.Type)
	}

	b := g.Geometry().Bound()
	r := tileRangeFor(b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y(), uint(precision))
	if err := m.checkBudget(r.count()); err != nil {
		return nil, err
	}

	var out []string
	r.each(func(tx, ty int32) {
		px, py := quadkey.TileToPixel(tx, ty)
		lat, lon := quadkey.PixelToCoordinates(px+quadkey.TileSize/2, py+quadkey.TileSize/2, uint(precision))
		if contains(orb.Point{lon, lat}) {
			out = append(out, quadkey.TileToQuadkey(tx, ty, uint(precision)))
		}
	})
	if len(out) == 0 {
		return model.Cells{quadkey.Encode(anchor.Lat(), anchor.Lon(), uint(precision))}, nil
	}
	sort.Strings(out)
	return out, nil
}

func (m *Mapper) checkBudget(n int64) error {
	if n > int64(m.maxCells) {
		return fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyCells, n, m.maxCells)
	}
	return nil
}

// --- helpers ---

func validatePrecision(precision int) error {
	if precision < 1 || precision > quadkey.MaxPixelPrecision {
		return fmt.Errorf("%w %d (must be 1..%d)", ErrInvalidPrecision, precision, quadkey.MaxPixelPrecision)
	}
	return nil
}

func checkPolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return errors.New("empty polygon")
	}
	if len(p[0]) < 4 {
		return errors.New("outer ring has < 4 vertices")
	}
	for i := 1; i < len(p); i++ {
		if len(p[i]) < 4 {
			return fmt.Errorf("hole %d has < 4 vertices", i-1)
		}
	}
	return nil
}

// tileRange is an inclusive block of tiles.
type tileRange struct {
	minX, minY, maxX, maxY int32
}

// tileRangeFor covers a lon/lat box. Corner order does not matter.
func tileRangeFor(lon1, lat1, lon2, lat2 float64, precision uint) tileRange {
	west, east := min(lon1, lon2), max(lon1, lon2)
	south, north := min(lat1, lat2), max(lat1, lat2)

	nwX, nwY := quadkey.CoordinatesToPixel(north, west, precision)
	seX, seY := quadkey.CoordinatesToPixel(south, east, precision)
	minX, minY := quadkey.PixelToTile(nwX, nwY)
	maxX, maxY := quadkey.PixelToTile(seX, seY)
	return tileRange{minX: minX, minY: minY, maxX: maxX, maxY: maxY}
}

func (r tileRange) count() int64 {
	return int64(r.maxX-r.minX+1) * int64(r.maxY-r.minY+1)
}

func (r tileRange) each(fn func(tx, ty int32)) {
	for ty := r.minY; ty <= r.maxY; ty++ {
		for tx := r.minX; tx <= r.maxX; tx++ {
			fn(tx, ty)
		}
	}
}
