package qkmapper

import (
	"fmt"

	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

func (m *Mapper) ToParent(cell string, parentPrecision int) (string, error) {
	if parentPrecision < 0 {
		return "", fmt.Errorf("%w %d", ErrInvalidPrecision, parentPrecision)
	}
	if parentPrecision > len(cell) {
		return "", fmt.Errorf("parent precision %d must be <= cell precision %d", parentPrecision, len(cell))
	}
	p, err := quadkey.Ancestor(cell, uint(parentPrecision))
	if err != nil {
		return "", fmt.Errorf("parse cell: %w", err)
	}
	return p, nil
}

// ToChildren lists every descendant of cell at childPrecision, sorted.
func (m *Mapper) ToChildren(cell string, childPrecision int) (model.Cells, error) {
	if err := validatePrecision(childPrecision); err != nil {
		return nil, err
	}
	if _, _, _, err := quadkey.QuadkeyToTile(cell); err != nil {
		return nil, fmt.Errorf("parse cell: %w", err)
	}
	if childPrecision < len(cell) {
		return nil, fmt.Errorf("child precision %d must be >= cell precision %d", childPrecision, len(cell))
	}

	depth := childPrecision - len(cell)
	// 4^depth without overflow for any depth the budget could allow
	if depth > 31 || m.checkBudget(int64(1)<<(2*depth)) != nil {
		return nil, fmt.Errorf("%w: 4^%d children exceed limit %d", ErrTooManyCells, depth, m.maxCells)
	}

	level := model.Cells{cell}
	for range depth {
		next := make(model.Cells, 0, 4*len(level))
		for _, c := range level {
			kids, err := quadkey.Children(c)
			if err != nil {
				return nil, fmt.Errorf("children of %q: %w", c, err)
			}
			next = append(next, kids...)
		}
		level = next
	}
	return level, nil
}
