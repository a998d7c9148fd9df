package markdown

import (
	"strconv"
	"strings"
	"unicode"

	"xarc/article"
)

type chunkKind int

const (
	chunkNone chunkKind = iota
	chunkList
	chunkQuote
	chunkHeading
	chunkText
	chunkCode
	chunkMedia
)

// stackable chunk kinds follow each other without a blank separator.
func (k chunkKind) stackable() bool {
	return k == chunkList || k == chunkQuote || k == chunkMedia
}

// chunkWriter assembles the output line by line, inserting one blank line
// between chunks on every kind transition. Two consecutive chunks of the
// same kind still separate unless the kind is stackable.
type chunkWriter struct {
	buf  strings.Builder
	last chunkKind
}

func (w *chunkWriter) write(kind chunkKind, lines ...string) {
	if len(lines) == 0 {
		return
	}
	if w.last != chunkNone && (kind != w.last || !kind.stackable()) {
		w.buf.WriteByte('\n')
	}
	for _, line := range lines {
		w.buf.WriteString(line)
		w.buf.WriteByte('\n')
	}
	w.last = kind
}

func (w *chunkWriter) String() string {
	return w.buf.String()
}

// blockRenderer walks the ordered block sequence and feeds rendered chunks
// to the writer. All of its state - the list run in progress, the open code
// fence, the used-URL set - lives for a single conversion.
type blockRenderer struct {
	doc    *article.Document
	idx    *entityIndex
	links  *mediaLinks
	tweets map[string]article.TweetInfo
	used   map[string]bool
	w      *chunkWriter

	listKind    string
	orderedNext int
	codeOpen    bool
	codeLines   []string
}

func (r *blockRenderer) renderAll(blocks []article.Block) {
	for i := range blocks {
		r.renderBlock(&blocks[i])
	}
	r.flushCode()
}

func (r *blockRenderer) renderBlock(b *article.Block) {
	// Consecutive code blocks accumulate inside one fence pair; anything
	// else closes the fence first.
	if b.Type == article.BlockCode {
		r.listKind, r.orderedNext = "", 0
		r.codeOpen = true
		r.codeLines = append(r.codeLines, strings.Split(b.Text, "\n")...)
		return
	}
	r.flushCode()

	if b.Type == article.BlockAtomic {
		r.listKind, r.orderedNext = "", 0
		r.renderAtomic(b)
		return
	}

	text := renderInline(b.Text, b.EntityRanges, r.idx, r.links)

	switch b.Type {
	case article.BlockOrderedItem, article.BlockUnorderedItem:
		if r.listKind != b.Type {
			r.orderedNext = 0
		}
		r.listKind = b.Type
		if isMediaPlaceholder(text) || strings.TrimSpace(text) == "" {
			break
		}
		if b.Type == article.BlockOrderedItem {
			r.orderedNext++
			r.w.write(chunkList, strconv.Itoa(r.orderedNext)+". "+text)
		} else {
			r.w.write(chunkList, "- "+text)
		}

	case article.BlockQuote:
		r.listKind, r.orderedNext = "", 0
		if isMediaPlaceholder(text) {
			break
		}
		r.w.write(chunkQuote, quoteLines(text)...)

	default:
		r.listKind, r.orderedNext = "", 0
		if level := b.HeadingLevel(); level > 0 {
			if isMediaPlaceholder(text) || strings.TrimSpace(text) == "" {
				break
			}
			r.w.write(chunkHeading, strings.Repeat("#", level)+" "+text)
			break
		}
		// unstyled and anything unrecognized render as plain text
		if isMediaPlaceholder(text) || strings.TrimSpace(text) == "" {
			break
		}
		r.w.write(chunkText, strings.Split(text, "\n")...)
	}

	r.emitRangeMedia(b)
}

func (r *blockRenderer) flushCode() {
	if !r.codeOpen {
		return
	}
	lines := make([]string, 0, len(r.codeLines)+2)
	lines = append(lines, "```")
	lines = append(lines, r.codeLines...)
	lines = append(lines, "```")
	r.w.write(chunkCode, lines...)
	r.codeOpen = false
	r.codeLines = nil
}

// renderAtomic handles standalone embed blocks. The block's own text is an
// editor placeholder and never renders; what matters are the entities behind
// its ranges, emitted as quoted posts first, then media embeds, then bare
// link lines.
func (r *blockRenderer) renderAtomic(b *article.Block) {
	entities := r.rangeEntities(b)

	for _, ent := range entities {
		if tw, ok := ent.(article.TweetEntity); ok && tw.TweetID != "" {
			r.w.write(chunkQuote, r.tweetLines(tw.TweetID)...)
		}
	}

	var mediaLines []string
	for _, ent := range entities {
		if me, ok := ent.(article.MediaEntity); ok {
			mediaLines = append(mediaLines, r.mediaEntityLines(me)...)
		}
	}
	r.w.write(chunkMedia, mediaLines...)

	var linkLines []string
	for _, ent := range entities {
		if le, ok := ent.(article.LinkEntity); ok && le.URL != "" {
			linkLines = append(linkLines, le.URL)
		}
	}
	r.w.write(chunkText, linkLines...)
}

// emitRangeMedia appends media attached to a text-bearing block as a
// trailing chunk of its own.
func (r *blockRenderer) emitRangeMedia(b *article.Block) {
	var lines []string
	for _, ent := range r.rangeEntities(b) {
		if me, ok := ent.(article.MediaEntity); ok {
			lines = append(lines, r.mediaEntityLines(me)...)
		}
	}
	r.w.write(chunkMedia, lines...)
}

// rangeEntities resolves the entities behind a block's ranges, keeping range
// order. Dangling keys drop out silently, partial annotations are normal.
func (r *blockRenderer) rangeEntities(b *article.Block) []article.Entity {
	var entities []article.Entity
	for _, rg := range b.EntityRanges {
		if !rg.Key.Valid {
			continue
		}
		if ent, ok := r.idx.resolve(strconv.Itoa(rg.Key.Value)); ok {
			entities = append(entities, ent)
		}
	}
	return entities
}

// mediaEntityLines renders one media entity's items as image embeds. Every
// emitted URL lands in the used set and URLs already used stay out, which is
// what keeps the cover and the trailing gallery from duplicating inline
// images. The entity's fallback URL covers payloads whose side-table lost
// the record.
func (r *blockRenderer) mediaEntityLines(me article.MediaEntity) []string {
	var lines []string
	resolvedAny := false
	for _, item := range me.Items {
		var url string
		if rec := r.doc.MediaRecord(item.MediaID); rec != nil {
			url = bestMediaURL(rec.Info)
		}
		if url == "" {
			continue
		}
		resolvedAny = true
		if r.used[url] {
			continue
		}
		r.used[url] = true
		lines = append(lines, "![]("+url+")")
	}
	if !resolvedAny && me.FallbackURL != "" && !r.used[me.FallbackURL] {
		r.used[me.FallbackURL] = true
		lines = append(lines, "![]("+me.FallbackURL+")")
	}
	if len(lines) > 0 && strings.TrimSpace(me.Caption) != "" {
		lines = append(lines, "*"+strings.TrimSpace(me.Caption)+"*")
	}
	return lines
}

// tweetLines renders one quoted post as a Markdown quote. Unresolved posts
// still produce a usable quote with just the status URL.
func (r *blockRenderer) tweetLines(id string) []string {
	info, ok := r.tweets[id]
	if !ok {
		info = article.TweetInfo{ID: id, URL: GenericTweetURL(id)}
	}
	var lines []string
	switch {
	case info.Name != "" && info.Handle != "":
		lines = append(lines, "> **"+info.Name+"** (@"+info.Handle+"):")
	case info.Name != "":
		lines = append(lines, "> **"+info.Name+"**:")
	case info.Handle != "":
		lines = append(lines, "> **@"+info.Handle+"**:")
	}
	if info.Text != "" {
		lines = append(lines, "> "+info.Text)
	}
	if info.URL != "" {
		lines = append(lines, "> "+info.URL)
	}
	return lines
}

// quoteLines prefixes every line of a blockquote, an empty quote still
// yielding its marker.
func quoteLines(text string) []string {
	if text == "" {
		return []string{"> "}
	}
	split := strings.Split(text, "\n")
	lines := make([]string, len(split))
	for i, line := range split {
		lines[i] = "> " + line
	}
	return lines
}

// isMediaPlaceholder reports whether rendered text is the marker the editor
// leaves where an embed was inserted: object replacement characters padded
// with nothing but whitespace and zero-width spaces. Such a block renders
// only its attached media.
func isMediaPlaceholder(text string) bool {
	seen := false
	for _, c := range text {
		switch {
		case c == '￼':
			seen = true
		case c == '​' || unicode.IsSpace(c):
		default:
			return false
		}
	}
	return seen
}
