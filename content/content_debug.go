package content

import (
	"sort"
	"strconv"

	"github.com/maruel/natural"

	"xarc/article"
	"xarc/utils/debug"
)

// String returns a readable tree of the whole prepared article.
// It exists solely for manual inspection during debugging.
func (c *Content) String() string {
	if c == nil {
		return "<nil Content>"
	}

	tw := debug.NewTreeWriter()

	doc := c.Doc
	tw.Line(0, "Article %q (recognized: %v)", doc.ID, doc.Recognized())
	tw.TextBlock(1, "Title", doc.Title)
	tw.TextBlock(1, "Preview", doc.PreviewText)
	tw.Line(1, "Plain text: %d bytes", len(doc.PlainText))
	tw.Line(1, "Raw payload: %d bytes", len(doc.Raw))

	if doc.CoverMedia != nil {
		tw.Line(1, "Cover media %q", doc.CoverMedia.MediaID)
		writeMediaInfo(tw, 2, doc.CoverMedia.Info)
	}

	if len(doc.MediaEntities) > 0 {
		tw.Line(0, "Media side-table: %d", len(doc.MediaEntities))
		byID := make(map[string]*article.MediaEntityRecord, len(doc.MediaEntities))
		keys := make([]string, 0, len(doc.MediaEntities))
		for i := range doc.MediaEntities {
			rec := &doc.MediaEntities[i]
			if _, dup := byID[rec.MediaID]; dup {
				continue
			}
			byID[rec.MediaID] = rec
			keys = append(keys, rec.MediaID)
		}
		sort.Sort(natural.StringSlice(keys))
		for _, k := range keys {
			tw.Line(1, "Media[%q]", k)
			writeMediaInfo(tw, 2, byID[k].Info)
		}
	}

	if doc.Content != nil {
		tw.Line(0, "Blocks: %d", len(doc.Content.Blocks))
		for i := range doc.Content.Blocks {
			b := &doc.Content.Blocks[i]
			tw.Line(1, "Block[%d] key=%q type=%q depth=%d", i, b.Key, b.Type, b.Depth)
			tw.TextBlock(2, "Text", b.Text)
			for _, r := range b.EntityRanges {
				tw.Line(2, "Range key=%s offset=%s length=%s",
					looseIntString(r.Key), looseIntString(r.Offset), looseIntString(r.Length))
			}
		}

		tw.Line(0, "Entity map: %d", len(doc.Content.Entities.Entries))
		for i, e := range doc.Content.Entities.Entries {
			key := "<positional>"
			if e.HasKey {
				key = e.Key
			}
			switch ent := e.Entity.(type) {
			case article.MediaEntity:
				tw.Line(1, "Entity[%d] key=%s MEDIA items=%d", i, key, len(ent.Items))
				for _, item := range ent.Items {
					tw.Line(2, "Item mediaId=%q", item.MediaID)
				}
				if len(ent.Caption) > 0 {
					tw.TextBlock(2, "Caption", ent.Caption)
				}
				if len(ent.FallbackURL) > 0 {
					tw.Line(2, "Fallback URL: %s", ent.FallbackURL)
				}
			case article.LinkEntity:
				tw.Line(1, "Entity[%d] key=%s LINK url=%q", i, key, ent.URL)
			case article.TweetEntity:
				tw.Line(1, "Entity[%d] key=%s TWEET id=%q", i, key, ent.TweetID)
			case article.UnknownEntity:
				tw.Line(1, "Entity[%d] key=%s UNKNOWN type=%q", i, key, ent.Type)
			default:
				tw.Line(1, "Entity[%d] key=%s %T", i, key, e.Entity)
			}
		}
	}

	if len(c.Tweets) > 0 {
		tw.Line(0, "Resolved tweets: %d", len(c.Tweets))
		keys := make([]string, 0, len(c.Tweets))
		for k := range c.Tweets {
			keys = append(keys, k)
		}
		sort.Sort(natural.StringSlice(keys))
		for _, k := range keys {
			info := c.Tweets[k]
			tw.Line(1, "Tweet[%q] name=%q handle=%q url=%q", k, info.Name, info.Handle, info.URL)
			if len(info.Text) > 0 {
				tw.TextBlock(2, "Text", info.Text)
			}
		}
	}

	return tw.String()
}

func writeMediaInfo(tw *debug.TreeWriter, depth int, info *article.MediaInfo) {
	if info == nil {
		tw.Line(depth, "no media info")
		return
	}
	if len(info.OriginalImgURL) > 0 {
		tw.Line(depth, "Image URL: %s", info.OriginalImgURL)
	}
	if info.PreviewImage != nil && len(info.PreviewImage.OriginalImgURL) > 0 {
		tw.Line(depth, "Preview URL: %s", info.PreviewImage.OriginalImgURL)
	}
	if info.Video != nil {
		tw.Line(depth, "Video variants: %d", len(info.Video.Variants))
		for _, v := range info.Video.Variants {
			tw.Line(depth+1, "Variant type=%q bitrate=%d url=%s", v.ContentType, v.BitRate, v.URL)
		}
	}
}

func looseIntString(l article.LooseInt) string {
	if !l.Valid {
		return "<invalid>"
	}
	return strconv.Itoa(l.Value)
}
