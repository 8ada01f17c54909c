// Package mapper converts between geometries and quadkey cells.
package mapper

import (
	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
)

type Interface interface {
	CellsForBBox(bb model.BBox, precision int) (model.Cells, error)
	CellsForPolygon(poly model.Polygon, precision int) (model.Cells, error)
	ToParent(cell string, precision int) (string, error)
	ToChildren(cell string, precision int) (model.Cells, error)
}
