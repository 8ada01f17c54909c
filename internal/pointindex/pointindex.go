// Package pointindex keeps points bucketed by quadkey cell in Redis and answers
// proximity queries over a cell and its eight neighbors.
package pointindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/mohammed-shakir/quadkey-index/internal/cache/keys"
	"github.com/mohammed-shakir/quadkey-index/internal/cache/redisstore"
	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
	"github.com/mohammed-shakir/quadkey-index/internal/core/observability"
	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

var (
	ErrInvalidPoint = errors.New("invalid point")
	ErrNotFound     = errors.New("point not found")
)

// Store is the subset of redisstore.Client the index needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Live(ctx context.Context, now time.Time, keys ...string) ([]string, error)
	Move(ctx context.Context, pl redisstore.Placement, setFor func(loc []byte) string) error
	Evict(ctx context.Context, member, locKey string, setFor func(loc []byte) string) (bool, error)
}

type Neighborer interface {
	Neighbors(qk string) ([]string, error)
}

type NeighborFunc func(qk string) ([]string, error)

func (f NeighborFunc) Neighbors(qk string) ([]string, error) { return f(qk) }

type Options struct {
	Precision uint
	TTL       time.Duration
	Neighbors Neighborer
	// Now is the clock cell membership deadlines are measured against.
	Now func() time.Time
}

// Index is safe for concurrent use; writes to one point are serialized by the store.
type Index struct {
	store     Store
	precision uint
	ttl       time.Duration
	nb        Neighborer
	now       func() time.Time
}

func New(store Store, opts Options) *Index {
	if opts.Precision == 0 || opts.Precision > quadkey.MaxPixelPrecision {
		opts.Precision = 16
	}
	if opts.Neighbors == nil {
		opts.Neighbors = NeighborFunc(quadkey.Neighbors)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Index{store: store, precision: opts.Precision, ttl: opts.TTL, nb: opts.Neighbors, now: opts.Now}
}

func (ix *Index) Precision() uint { return ix.precision }

// Put indexes p under the cell containing it, moving it out of its previous cell when
// it has changed. It returns the cell. With a TTL the point also drops out of Nearby
// once the TTL has passed.
func (ix *Index) Put(ctx context.Context, p model.Point) (string, error) {
	if err := validate(p); err != nil {
		return "", err
	}
	cell := quadkey.Encode(p.Lat, p.Lon, ix.precision)
	observability.ObserveCodec("encode", nil)

	pl := redisstore.Placement{
		Member: p.ID,
		Set:    keys.CellKey(p.Layer, cell),
		LocKey: keys.PointKey(p.Layer, p.ID),
		Loc:    []byte(cell),
		TTL:    ix.ttl,
	}
	if ix.ttl > 0 {
		pl.ExpireAt = ix.now().Add(ix.ttl)
	}
	if err := ix.store.Move(ctx, pl, cellKeyFor(p.Layer)); err != nil {
		return "", fmt.Errorf("pointindex put %s/%s: %w", p.Layer, p.ID, err)
	}
	return cell, nil
}

// Remove drops a point from the index. It returns ErrNotFound for unknown points.
func (ix *Index) Remove(ctx context.Context, layer, id string) error {
	if strings.TrimSpace(layer) == "" || strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: layer and id are required", ErrInvalidPoint)
	}
	found, err := ix.store.Evict(ctx, id, keys.PointKey(layer, id), cellKeyFor(layer))
	if err != nil {
		return fmt.Errorf("pointindex remove %s/%s: %w", layer, id, err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// Cell returns the cell a point is indexed under.
func (ix *Index) Cell(ctx context.Context, layer, id string) (string, error) {
	if strings.TrimSpace(layer) == "" || strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: layer and id are required", ErrInvalidPoint)
	}
	raw, ok, err := ix.store.Get(ctx, keys.PointKey(layer, id))
	if err != nil {
		return "", fmt.Errorf("pointindex lookup %s/%s: %w", layer, id, err)
	}
	if !ok {
		return "", ErrNotFound
	}
	return string(raw), nil
}

// Nearby returns the sorted ids of all points in the cell containing (lat, lon) and
// in the eight cells around it.
func (ix *Index) Nearby(ctx context.Context, layer string, lat, lon float64) ([]string, error) {
	if strings.TrimSpace(layer) == "" {
		return nil, fmt.Errorf("%w: layer is required", ErrInvalidPoint)
	}
	cell := quadkey.Encode(lat, lon, ix.precision)
	observability.ObserveCodec("encode", nil)

	cells, err := ix.nb.Neighbors(cell)
	if err != nil {
		return nil, fmt.Errorf("pointindex neighbors of %q: %w", cell, err)
	}
	setKeys := make([]string, 0, len(cells))
	for _, c := range cells {
		setKeys = append(setKeys, keys.CellKey(layer, c))
	}
	ids, err := ix.store.Live(ctx, ix.now(), setKeys...)
	if err != nil {
		return nil, fmt.Errorf("pointindex nearby %s: %w", layer, err)
	}
	slices.Sort(ids)
	return ids, nil
}

func cellKeyFor(layer string) func(loc []byte) string {
	return func(loc []byte) string { return keys.CellKey(layer, string(loc)) }
}

func validate(p model.Point) error {
	if strings.TrimSpace(p.Layer) == "" {
		return fmt.Errorf("%w: layer is required", ErrInvalidPoint)
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPoint)
	}
	if !finite(p.Lat) || !finite(p.Lon) {
		return fmt.Errorf("%w: lat and lon must be finite", ErrInvalidPoint)
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
