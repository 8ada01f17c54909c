package pointindex

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/quadkey-index/internal/cache/keys"
	"github.com/mohammed-shakir/quadkey-index/internal/cache/neighborcache"
	"github.com/mohammed-shakir/quadkey-index/internal/cache/redisstore"
	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

func newMini(t *testing.T) (*redisstore.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	cli, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })

	return cli, mr
}

// inCell reports whether id is a member of the cell's set.
func inCell(mr *miniredis.Miniredis, cell, id string) bool {
	_, err := mr.ZScore(keys.CellKey(layer, cell), id)
	return err == nil
}

const (
	layer = "fleet"
	lat   = 59.3293
	lon   = 18.0686
)

func TestPut_IndexesUnderEncodedCell(t *testing.T) {
	cli, mr := newMini(t)
	ix := New(cli, Options{Precision: 14})
	ctx := context.Background()

	cell, err := ix.Put(ctx, model.Point{Layer: layer, ID: "car-1", Lat: lat, Lon: lon})
	require.NoError(t, err)
	assert.Equal(t, quadkey.Encode(lat, lon, 14), cell)

	assert.True(t, inCell(mr, cell, "car-1"))

	got, err := ix.Cell(ctx, layer, "car-1")
	require.NoError(t, err)
	assert.Equal(t, cell, got)
}

func TestPut_MovesPointBetweenCells(t *testing.T) {
	cli, mr := newMini(t)
	ix := New(cli, Options{Precision: 14})
	ctx := context.Background()

	first, err := ix.Put(ctx, model.Point{Layer: layer, ID: "car-1", Lat: lat, Lon: lon})
	require.NoError(t, err)
	second, err := ix.Put(ctx, model.Point{Layer: layer, ID: "car-1", Lat: 57.7089, Lon: 11.9746})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	assert.False(t, inCell(mr, first, "car-1"), "point left behind in old cell")
	assert.True(t, inCell(mr, second, "car-1"))
}

func TestPut_TTLAppliesToLocation(t *testing.T) {
	cli, mr := newMini(t)
	ix := New(cli, Options{Precision: 10, TTL: time.Minute})

	_, err := ix.Put(context.Background(), model.Point{Layer: layer, ID: "p", Lat: lat, Lon: lon})
	require.NoError(t, err)

	ttl := mr.TTL(keys.PointKey(layer, "p"))
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl=%v", ttl)
}

func TestPut_ExpiredPointLeavesNearby(t *testing.T) {
	cli, mr := newMini(t)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ix := New(cli, Options{Precision: 14, TTL: time.Minute, Now: func() time.Time { return clock }})
	ctx := context.Background()

	first, err := ix.Put(ctx, model.Point{Layer: layer, ID: "ghost", Lat: lat, Lon: lon})
	require.NoError(t, err)

	got, err := ix.Nearby(ctx, layer, lat, lon)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, got)

	clock = clock.Add(2 * time.Minute)
	mr.FastForward(2 * time.Minute)

	_, err = ix.Cell(ctx, layer, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err = ix.Nearby(ctx, layer, lat, lon)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, inCell(mr, first, "ghost"), "expired member not trimmed")

	second, err := ix.Put(ctx, model.Point{Layer: layer, ID: "ghost", Lat: -33.86, Lon: 151.21})
	require.NoError(t, err)
	got, err = ix.Nearby(ctx, layer, -33.86, 151.21)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, got)
	assert.True(t, inCell(mr, second, "ghost"))
	assert.False(t, inCell(mr, first, "ghost"))
}

func TestPut_ConcurrentPutsKeepOneCell(t *testing.T) {
	cli, mr := newMini(t)
	ix := New(cli, Options{Precision: 14})
	ctx := context.Background()

	spots := []model.Point{
		{Layer: layer, ID: "dup", Lat: lat, Lon: lon},
		{Layer: layer, ID: "dup", Lat: 57.7089, Lon: 11.9746},
		{Layer: layer, ID: "dup", Lat: 55.6050, Lon: 13.0038},
		{Layer: layer, ID: "dup", Lat: 63.8258, Lon: 20.2630},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func(p model.Point) {
			defer wg.Done()
			_, err := ix.Put(ctx, p)
			errs <- err
		}(spots[i%len(spots)])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	current, err := ix.Cell(ctx, layer, "dup")
	require.NoError(t, err)
	holders := 0
	for _, p := range spots {
		cell := quadkey.Encode(p.Lat, p.Lon, 14)
		if inCell(mr, cell, "dup") {
			holders++
			assert.Equal(t, current, cell)
		}
	}
	assert.Equal(t, 1, holders)
}

func TestPut_RejectsInvalidPoints(t *testing.T) {
	cli, _ := newMini(t)
	ix := New(cli, Options{})
	ctx := context.Background()

	for _, p := range []model.Point{
		{Layer: "", ID: "a"},
		{Layer: layer, ID: "  "},
		{Layer: layer, ID: "a", Lat: math.NaN()},
		{Layer: layer, ID: "a", Lon: math.Inf(1)},
	} {
		_, err := ix.Put(ctx, p)
		assert.True(t, errors.Is(err, ErrInvalidPoint), "point %+v err=%v", p, err)
	}
}

func TestRemove(t *testing.T) {
	cli, mr := newMini(t)
	ix := New(cli, Options{Precision: 12})
	ctx := context.Background()

	cell, err := ix.Put(ctx, model.Point{Layer: layer, ID: "car-1", Lat: lat, Lon: lon})
	require.NoError(t, err)

	require.NoError(t, ix.Remove(ctx, layer, "car-1"))
	assert.False(t, inCell(mr, cell, "car-1"))

	_, err = ix.Cell(ctx, layer, "car-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, ix.Remove(ctx, layer, "car-1"), ErrNotFound)
	assert.ErrorIs(t, ix.Remove(ctx, "", "car-1"), ErrInvalidPoint)
}

func TestNearby_FindsNeighborsAndSkipsFarAndOtherLayers(t *testing.T) {
	cli, _ := newMini(t)
	nc := neighborcache.New(64)
	ix := New(cli, Options{Precision: 14, Neighbors: nc})
	ctx := context.Background()

	cell := quadkey.Encode(lat, lon, 14)
	ns := quadkey.MustNeighbors(cell)
	east := ns[5]
	eLat, eLon, _, err := quadkey.Decode(east)
	require.NoError(t, err)

	put := func(p model.Point) {
		t.Helper()
		_, err := ix.Put(ctx, p)
		require.NoError(t, err)
	}
	put(model.Point{Layer: layer, ID: "b-center", Lat: lat, Lon: lon})
	// Decode gives the tile's NW corner; nudge inward so the point stays in that tile.
	put(model.Point{Layer: layer, ID: "a-east", Lat: eLat - 1e-4, Lon: eLon + 1e-4})
	put(model.Point{Layer: layer, ID: "far", Lat: -33.86, Lon: 151.21})
	put(model.Point{Layer: "other", ID: "c-other-layer", Lat: lat, Lon: lon})

	got, err := ix.Nearby(ctx, layer, lat, lon)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-east", "b-center"}, got)

	empty, err := ix.Nearby(ctx, "nobody", lat, lon)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 1, nc.Len())
}

func TestNearby_AtGridCornerDoesNotFail(t *testing.T) {
	cli, _ := newMini(t)
	ix := New(cli, Options{Precision: 3})
	ctx := context.Background()

	_, err := ix.Put(ctx, model.Point{Layer: layer, ID: "nw", Lat: 85, Lon: -180})
	require.NoError(t, err)

	got, err := ix.Nearby(ctx, layer, 85, -180)
	require.NoError(t, err)
	assert.Equal(t, []string{"nw"}, got)
}

func TestNearby_RequiresLayer(t *testing.T) {
	cli, _ := newMini(t)
	ix := New(cli, Options{})
	_, err := ix.Nearby(context.Background(), " ", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidPoint)
}

func TestStoreErrorsPropagate(t *testing.T) {
	cli, mr := newMini(t)
	ix := New(cli, Options{Precision: 8})
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := ix.Put(ctx, model.Point{Layer: layer, ID: "x", Lat: lat, Lon: lon})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPoint)

	_, err = ix.Nearby(ctx, layer, lat, lon)
	require.Error(t, err)
}
