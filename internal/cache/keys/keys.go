// Package keys builds the redis keys of the point index.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxLayerTextLen = 80

// CellKey names the set of point ids indexed under a quadkey cell. The cell's
// precision is its length and is spelled out so keys of different precisions never
// share a prefix scan.
func CellKey(layer, cell string) string {
	return fmt.Sprintf("qk:%s:cell:%d:%s", layerSegment(layer), len(cell), cell)
}

// PointKey names the record of the cell a point is currently indexed under.
func PointKey(layer, id string) string {
	return fmt.Sprintf("qk:%s:point:%s:i=%016x", layerSegment(layer), sanitizeForKey(id), xxhash.Sum64String(id))
}

// layerSegment is the sanitized layer name plus a hash of the raw name, so two layers
// that sanitize to the same text still get distinct keys.
func layerSegment(layer string) string {
	raw := strings.TrimSpace(layer)
	safe := sanitizeForKey(raw)
	if len(safe) > maxLayerTextLen {
		safe = safe[:maxLayerTextLen]
	}
	return fmt.Sprintf("%s:l=%016x", safe, xxhash.Sum64String(raw))
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
