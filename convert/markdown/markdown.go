package markdown

import (
	"bytes"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"xarc/article"
)

// Render linearizes one parsed article into Markdown and returns it together
// with the cover image URL, when the article declares one. tweets carries
// the quoted posts resolved beforehand (ResolveTweets); nil renders every
// quote in degraded form. Rendering never fails: a payload with no article
// fields at all comes back as its own pretty-printed JSON in a fenced block.
// Render is pure, the same inputs always produce identical bytes.
func Render(doc *article.Document, tweets map[string]article.TweetInfo, log *zap.Logger) (string, string) {
	if doc == nil || !doc.Recognized() {
		log.Debug("Payload has no article fields, emitting raw JSON")
		return rawFallback(doc), ""
	}

	w := &chunkWriter{}
	used := make(map[string]bool)

	// The cover is handled by the caller, mark it used up front so neither
	// inline rendering nor the gallery repeats it.
	coverURL := ""
	if doc.CoverMedia != nil {
		if coverURL = bestMediaURL(doc.CoverMedia.Info); coverURL != "" {
			used[coverURL] = true
		}
	}

	if title := strings.TrimSpace(doc.Title); title != "" {
		w.write(chunkHeading, "# "+title)
	}

	var entities article.EntityMap
	var blocks []article.Block
	if doc.Content != nil {
		entities = doc.Content.Entities
		blocks = doc.Content.Blocks
	}

	r := &blockRenderer{
		doc:    doc,
		idx:    newEntityIndex(entities),
		links:  mergeMediaLinks(entities),
		tweets: tweets,
		used:   used,
		w:      w,
	}

	if len(blocks) > 0 {
		r.renderAll(blocks)
	} else if text := fallbackText(doc); text != "" {
		w.write(chunkText, strings.Split(text, "\n")...)
	}

	// Trailing gallery of whatever media never made it into the body.
	var gallery []string
	for i := range doc.MediaEntities {
		url := bestMediaURL(doc.MediaEntities[i].Info)
		if url == "" || used[url] {
			continue
		}
		used[url] = true
		gallery = append(gallery, "![]("+url+")")
	}
	if len(gallery) > 0 {
		w.write(chunkHeading, "## Media")
		w.write(chunkMedia, gallery...)
	}

	return w.String(), coverURL
}

// fallbackText is what renders when the article has no blocks at all.
func fallbackText(doc *article.Document) string {
	if text := strings.TrimSpace(doc.PlainText); text != "" {
		return text
	}
	return strings.TrimSpace(doc.PreviewText)
}

func rawFallback(doc *article.Document) string {
	raw := []byte("{}")
	if doc != nil && len(doc.Raw) > 0 {
		raw = doc.Raw
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	return "```json\n" + pretty.String() + "\n```\n"
}
