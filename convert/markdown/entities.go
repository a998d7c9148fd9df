// Package markdown linearizes a parsed article into Markdown text. The
// renderer is pure and holds no state between calls; the only component
// talking to the network is the quoted-post resolver, which callers run
// before rendering.
package markdown

import (
	"strconv"
	"strings"

	"xarc/article"
)

// entityIndex answers entity lookups for one document. Range annotations
// address entries by a declared logical key, but real payloads duplicate,
// omit and garble those keys, so position and the raw key string serve as
// fallbacks.
type entityIndex struct {
	entries   []article.EntityMapEntry
	byLogical map[int]article.Entity
	byRaw     map[string]article.Entity
}

func newEntityIndex(m article.EntityMap) *entityIndex {
	idx := &entityIndex{
		entries:   m.Entries,
		byLogical: make(map[int]article.Entity, len(m.Entries)),
		byRaw:     make(map[string]article.Entity, len(m.Entries)),
	}
	for _, entry := range m.Entries {
		if !entry.HasKey {
			continue
		}
		if n, ok := parseKey(entry.Key); ok {
			if _, dup := idx.byLogical[n]; !dup {
				idx.byLogical[n] = entry.Entity
			}
		}
		if _, dup := idx.byRaw[entry.Key]; !dup {
			idx.byRaw[entry.Key] = entry.Entity
		}
	}
	return idx
}

// resolve finds the entity a range key points at: first by declared logical
// key, then by position in the map, finally by the raw key string as
// written. Duplicated logical keys resolve to their first declaration.
func (idx *entityIndex) resolve(key string) (article.Entity, bool) {
	if n, ok := parseKey(key); ok {
		if e, found := idx.byLogical[n]; found {
			return e, true
		}
		if n >= 0 && n < len(idx.entries) {
			return idx.entries[n].Entity, true
		}
	}
	if e, found := idx.byRaw[key]; found {
		return e, true
	}
	return nil, false
}

func parseKey(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}
