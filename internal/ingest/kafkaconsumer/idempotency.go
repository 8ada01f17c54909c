package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// tsDedupe remembers the newest event timestamp applied per point.
type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newTSDedupe(size int) *tsDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, int64](size)
	return &tsDedupe{lru: c}
}

// returns false if an event at least as new was already applied
func (d *tsDedupe) shouldApply(key string, ts int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && ts <= last {
		return false
	}
	return true
}

func (d *tsDedupe) applied(key string, ts int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && ts <= last {
		return
	}
	d.lru.Add(key, ts)
}
