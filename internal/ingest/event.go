// Package ingest defines the point update events consumed from the message bus.
package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Layer   string    `json:"layer"`
	ID      string    `json:"id"`
	Lat     float64   `json:"lat,omitempty"`
	Lon     float64   `json:"lon,omitempty"`
	TS      time.Time `json:"ts"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpUpsert, OpDelete:
	default:
		return fmt.Errorf("op must be upsert|delete")
	}
	if strings.TrimSpace(e.Layer) == "" {
		return fmt.Errorf("layer is required")
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.Op == OpDelete {
		return nil
	}
	// Out-of-range values are clipped by the codec; only reject what cannot be clipped.
	if !finite(e.Lat) || !finite(e.Lon) {
		return fmt.Errorf("lat and lon must be finite numbers")
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
