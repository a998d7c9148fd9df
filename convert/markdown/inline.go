package markdown

import (
	"sort"
	"strconv"

	"xarc/article"
)

// renderInline rewrites one block's text, wrapping annotated spans in
// Markdown links. Only ranges with a numeric key, a numeric offset and a
// positive length apply; the rest of the annotation garbage is skipped in
// place. Ranges apply in descending offset order so a splice never shifts
// the offsets of ranges still waiting. Offsets count characters, not bytes,
// so the splicing runs over runes.
func renderInline(text string, ranges []article.EntityRange, idx *entityIndex, links *mediaLinks) string {
	if len(ranges) == 0 {
		return text
	}
	valid := make([]article.EntityRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Key.Valid && r.Offset.Valid && r.Length.Valid && r.Length.Value > 0 {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return text
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Offset.Value > valid[j].Offset.Value })

	runes := []rune(text)
	for _, r := range valid {
		start := r.Offset.Value
		if start < 0 || start >= len(runes) {
			continue
		}
		end := start + r.Length.Value
		if end > len(runes) {
			end = len(runes)
		}
		ent, ok := idx.resolve(strconv.Itoa(r.Key.Value))
		if !ok {
			continue
		}
		var url string
		switch e := ent.(type) {
		case article.LinkEntity:
			url = e.URL
		case article.MediaEntity:
			url, _ = links.url(r.Key.Value)
		default:
			continue
		}
		if url == "" {
			continue
		}
		label := string(runes[start:end])
		spliced := []rune("[" + label + "](" + url + ")")
		out := make([]rune, 0, len(runes)-(end-start)+len(spliced))
		out = append(out, runes[:start]...)
		out = append(out, spliced...)
		out = append(out, runes[end:]...)
		runes = out
	}
	return string(runes)
}
