// Package neighborcache memoizes quadkey neighborhoods.
package neighborcache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/quadkey-index/internal/core/observability"
	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

const defaultSize = 8192

type Cache struct {
	lru *lru.Cache[string, []string]
}

func New(size int) *Cache {
	if size <= 0 {
		size = defaultSize
	}
	c, _ := lru.New[string, []string](size)
	return &Cache{lru: c}
}

// Neighbors returns the same result as quadkey.Neighbors. Invalid keys are never
// cached. Callers get their own copy of the slice.
func (c *Cache) Neighbors(qk string) ([]string, error) {
	if v, ok := c.lru.Get(qk); ok {
		observability.IncNeighborCacheHit()
		return clone(v), nil
	}
	observability.IncNeighborCacheMiss()

	ns, err := quadkey.Neighbors(qk)
	observability.ObserveCodec("neighbors", err)
	if err != nil {
		return nil, err
	}
	c.lru.Add(qk, ns)
	return clone(ns), nil
}

func (c *Cache) Len() int { return c.lru.Len() }

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
