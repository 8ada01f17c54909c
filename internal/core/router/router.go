// Package router serves the quadkey HTTP API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
	"github.com/mohammed-shakir/quadkey-index/internal/core/observability"
	"github.com/mohammed-shakir/quadkey-index/internal/mapper"
	qkmapper "github.com/mohammed-shakir/quadkey-index/internal/mapper/quadkey"
	"github.com/mohammed-shakir/quadkey-index/internal/pointindex"
	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

type Neighborer interface {
	Neighbors(qk string) ([]string, error)
}

type PointIndex interface {
	Precision() uint
	Put(ctx context.Context, p model.Point) (string, error)
	Remove(ctx context.Context, layer, id string) error
	Nearby(ctx context.Context, layer string, lat, lon float64) ([]string, error)
}

type Handlers struct {
	logger    *slog.Logger
	mapper    mapper.Interface
	neighbors Neighborer
	points    PointIndex
	opTimeout time.Duration
}

// Deps are the collaborators of the handlers. Points may be nil, in which case the
// point routes are not mounted.
type Deps struct {
	Logger    *slog.Logger
	Mapper    mapper.Interface
	Neighbors Neighborer
	Points    PointIndex
	OpTimeout time.Duration
}

func New(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Mapper == nil {
		d.Mapper = qkmapper.New(0)
	}
	if d.OpTimeout <= 0 {
		d.OpTimeout = 250 * time.Millisecond
	}
	return &Handlers{
		logger:    d.Logger,
		mapper:    d.Mapper,
		neighbors: d.Neighbors,
		points:    d.Points,
		opTimeout: d.OpTimeout,
	}
}

// Mount registers the /v1 routes on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/encode", h.Encode)
		r.Get("/decode", h.Decode)
		r.Get("/neighbors", h.Neighbors)
		r.Get("/resolution", h.Resolution)
		r.Get("/cells", h.Cells)
		r.Get("/cells/{quadkey}/parent", h.Parent)
		r.Get("/cells/{quadkey}/children", h.Children)
		if h.points != nil {
			r.Put("/points", h.PutPoint)
			r.Delete("/points/{layer}/{id}", h.DeletePoint)
			r.Get("/nearby", h.Nearby)
		}
	})
}

type tileJSON struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type boundsJSON struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

func (h *Handlers) Encode(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseLatLon(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := parsePrecision(r.URL.Query().Get("precision"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	px, py := quadkey.CoordinatesToPixel(lat, lon, p)
	tx, ty := quadkey.PixelToTile(px, py)
	qk := quadkey.TileToQuadkey(tx, ty, p)
	observability.ObserveCodec("encode", nil)

	writeJSON(w, http.StatusOK, struct {
		Quadkey   string   `json:"quadkey"`
		Precision uint     `json:"precision"`
		Tile      tileJSON `json:"tile"`
		Pixel     tileJSON `json:"pixel"`
	}{qk, p, tileJSON{tx, ty}, tileJSON{px, py}})
}

func (h *Handlers) Decode(w http.ResponseWriter, r *http.Request) {
	qk := r.URL.Query().Get("quadkey")
	if len(qk) > quadkey.MaxPixelPrecision {
		writeError(w, http.StatusBadRequest, fmt.Errorf("quadkey longer than %d digits", quadkey.MaxPixelPrecision))
		return
	}
	lat, lon, p, err := quadkey.Decode(qk)
	observability.ObserveCodec("decode", err)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, ty, _, _ := quadkey.QuadkeyToTile(qk)
	minLat, minLon, maxLat, maxLon := quadkey.TileBounds(tx, ty, p)

	writeJSON(w, http.StatusOK, struct {
		Quadkey   string     `json:"quadkey"`
		Lat       float64    `json:"lat"`
		Lon       float64    `json:"lon"`
		Precision uint       `json:"precision"`
		Tile      tileJSON   `json:"tile"`
		Bounds    boundsJSON `json:"bounds"`
	}{qk, lat, lon, p, tileJSON{tx, ty}, boundsJSON{minLat, minLon, maxLat, maxLon}})
}

func (h *Handlers) Neighbors(w http.ResponseWriter, r *http.Request) {
	qk := r.URL.Query().Get("quadkey")
	var (
		ns  []string
		err error
	)
	if h.neighbors != nil {
		ns, err = h.neighbors.Neighbors(qk)
	} else {
		ns, err = quadkey.Neighbors(qk)
		observability.ObserveCodec("neighbors", err)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Quadkey   string   `json:"quadkey"`
		Neighbors []string `json:"neighbors"`
	}{qk, ns})
}

func (h *Handlers) Resolution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseCoord("lat", q.Get("lat"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := parsePrecision(q.Get("precision"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Lat              float64 `json:"lat"`
		Precision        uint    `json:"precision"`
		GroundResolution float64 `json:"ground_resolution_m"`
		MapSize          float64 `json:"map_size_px"`
	}{lat, p, quadkey.GroundResolution(lat, p), quadkey.MapSize(p)})
}

func (h *Handlers) Cells(w http.ResponseWriter, r *http.Request) {
	req, warn, err := ParseCellsRequest(r)
	if warn != "" {
		h.logger.WarnContext(r.Context(), warn)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var cells model.Cells
	if req.Polygon != nil {
		cells, err = h.mapper.CellsForPolygon(*req.Polygon, req.Precision)
	} else {
		cells, err = h.mapper.CellsForBBox(*req.BBox, req.Precision)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeCells(w, req.Precision, cells)
}

func (h *Handlers) Parent(w http.ResponseWriter, r *http.Request) {
	cell := chi.URLParam(r, "quadkey")
	p, err := parsePrecision(r.URL.Query().Get("precision"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	parent, err := h.mapper.ToParent(cell, int(p))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Quadkey string `json:"quadkey"`
		Parent  string `json:"parent"`
	}{cell, parent})
}

func (h *Handlers) Children(w http.ResponseWriter, r *http.Request) {
	cell := chi.URLParam(r, "quadkey")
	p, err := parsePrecision(r.URL.Query().Get("precision"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	children, err := h.mapper.ToChildren(cell, int(p))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeCells(w, int(p), children)
}

func (h *Handlers) PutPoint(w http.ResponseWriter, r *http.Request) {
	var p model.Point
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opTimeout)
	defer cancel()
	cell, err := h.points.Put(ctx, p)
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Layer   string `json:"layer"`
		ID      string `json:"id"`
		Quadkey string `json:"quadkey"`
	}{p.Layer, p.ID, cell})
}

func (h *Handlers) DeletePoint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opTimeout)
	defer cancel()
	if err := h.points.Remove(ctx, chi.URLParam(r, "layer"), chi.URLParam(r, "id")); err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Nearby(w http.ResponseWriter, r *http.Request) {
	layer := strings.TrimSpace(r.URL.Query().Get("layer"))
	if layer == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing required parameter: layer"))
		return
	}
	lat, lon, err := parseLatLon(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opTimeout)
	defer cancel()
	ids, err := h.points.Nearby(ctx, layer, lat, lon)
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Layer   string   `json:"layer"`
		Quadkey string   `json:"quadkey"`
		IDs     []string `json:"ids"`
	}{layer, quadkey.Encode(lat, lon, h.points.Precision()), ids})
}

func (h *Handlers) writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pointindex.ErrInvalidPoint):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pointindex.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.ErrorContext(ctx, "point store timeout", "err", err)
		writeError(w, http.StatusGatewayTimeout, errors.New("point store timeout"))
	default:
		h.logger.ErrorContext(ctx, "point store failure", "err", err)
		writeError(w, http.StatusBadGateway, errors.New("point store unavailable"))
	}
}

func writeCells(w http.ResponseWriter, precision int, cells model.Cells) {
	if cells == nil {
		cells = model.Cells{}
	}
	writeJSON(w, http.StatusOK, struct {
		Precision int         `json:"precision"`
		Count     int         `json:"count"`
		Cells     model.Cells `json:"cells"`
	}{precision, len(cells), cells})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{err.Error()})
}
