package markdown

import (
	"sort"

	"xarc/article"
)

// mediaLinks records which hyperlink a media embed should point at,
// addressable by the media entity's declared key and by its position in the
// entity map.
type mediaLinks struct {
	byKey map[int]string
	byPos map[int]string
}

// url returns the merged link URL for a range key, trying the declared-key
// mapping before the positional one.
func (ml *mediaLinks) url(key int) (string, bool) {
	if u, ok := ml.byKey[key]; ok {
		return u, true
	}
	u, ok := ml.byPos[key]
	return u, ok
}

// mergeMediaLinks pairs media entities with link entities so images can
// render as clickable. Nothing in the payload ties the two groups together;
// the editor just tends to declare a media's target link right after the
// media itself, which this exploits. Both groups sort ascending by key, then
// every media takes the first unconsumed link with a key strictly greater
// than its own, falling back to the first unconsumed link of any key and,
// once all links are consumed, reusing the very first link of the pool.
// Media entities get no mapping only when the document has no links at all.
func mergeMediaLinks(m article.EntityMap) *mediaLinks {
	type tagged struct {
		key int
		pos int
		url string
	}
	var medias, links []tagged
	for pos, entry := range m.Entries {
		key := pos
		if entry.HasKey {
			if n, ok := parseKey(entry.Key); ok {
				key = n
			}
		}
		switch e := entry.Entity.(type) {
		case article.MediaEntity:
			medias = append(medias, tagged{key: key, pos: pos})
		case article.LinkEntity:
			links = append(links, tagged{key: key, pos: pos, url: e.URL})
		}
	}
	sort.SliceStable(medias, func(i, j int) bool { return medias[i].key < medias[j].key })
	sort.SliceStable(links, func(i, j int) bool { return links[i].key < links[j].key })

	merged := &mediaLinks{byKey: make(map[int]string), byPos: make(map[int]string)}
	consumed := make([]bool, len(links))
	for _, media := range medias {
		pick := -1
		for i, link := range links {
			if !consumed[i] && link.key > media.key {
				pick = i
				break
			}
		}
		if pick < 0 {
			for i := range links {
				if !consumed[i] {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			if len(links) == 0 {
				continue
			}
			pick = 0
		}
		consumed[pick] = true
		merged.byKey[media.key] = links[pick].url
		merged.byPos[media.pos] = links[pick].url
	}
	return merged
}
