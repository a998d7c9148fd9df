package article

import (
	"encoding/json"
)

// Type definitions for the X long-form article payload. The shape follows
// what the GraphQL endpoints actually return: article metadata with a media
// side-table plus a Draft.js style content state (ordered blocks and an
// entity map).

// Document is one parsed article. Raw always holds the exact JSON object the
// document was decoded from so callers can fall back to it when the payload
// turns out not to be an article at all.
type Document struct {
	ID            string
	Title         string
	PreviewText   string
	PlainText     string
	CoverMedia    *MediaEntityRecord
	MediaEntities []MediaEntityRecord
	Content       *ContentState
	Raw           json.RawMessage
}

// Recognized reports whether the payload carried at least one article field.
// A document failing this check renders as a raw JSON dump downstream.
func (d *Document) Recognized() bool {
	if d == nil {
		return false
	}
	if d.Title != "" || d.PreviewText != "" || d.PlainText != "" {
		return true
	}
	if d.CoverMedia != nil || len(d.MediaEntities) > 0 {
		return true
	}
	if d.Content != nil && (len(d.Content.Blocks) > 0 || len(d.Content.Entities.Entries) > 0) {
		return true
	}
	return false
}

// MediaRecord finds the media side-table record for the given media ID,
// checking the cover record too. Returns nil when the ID is unknown.
func (d *Document) MediaRecord(mediaID string) *MediaEntityRecord {
	if d == nil || mediaID == "" {
		return nil
	}
	for i := range d.MediaEntities {
		if d.MediaEntities[i].MediaID == mediaID {
			return &d.MediaEntities[i]
		}
	}
	if d.CoverMedia != nil && d.CoverMedia.MediaID == mediaID {
		return d.CoverMedia
	}
	return nil
}

// ContentState is the Draft.js style body of an article: ordered blocks plus
// the entity side-table the blocks reference by key.
type ContentState struct {
	Blocks   []Block   `json:"blocks"`
	Entities EntityMap `json:"entityMap"`
}

// Block types emitted by the article editor.
const (
	BlockHeaderOne     = "header-one"
	BlockHeaderTwo     = "header-two"
	BlockHeaderThree   = "header-three"
	BlockHeaderFour    = "header-four"
	BlockHeaderFive    = "header-five"
	BlockHeaderSix     = "header-six"
	BlockOrderedItem   = "ordered-list-item"
	BlockUnorderedItem = "unordered-list-item"
	BlockQuote         = "blockquote"
	BlockCode          = "code-block"
	BlockAtomic        = "atomic"
	BlockUnstyled      = "unstyled"
)

// Block is a single paragraph-level unit: literal text plus the entity
// ranges annotating spans of that text.
type Block struct {
	Key          string        `json:"key"`
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	Depth        int           `json:"depth"`
	EntityRanges []EntityRange `json:"entityRanges"`
}

// HeadingLevel maps header block types to their Markdown level, zero for
// everything else.
func (b *Block) HeadingLevel() int {
	switch b.Type {
	case BlockHeaderOne:
		return 1
	case BlockHeaderTwo:
		return 2
	case BlockHeaderThree:
		return 3
	case BlockHeaderFour:
		return 4
	case BlockHeaderFive:
		return 5
	case BlockHeaderSix:
		return 6
	}
	return 0
}

// EntityRange points a span of block text at an entity-map entry. Real
// payloads are sloppy here: keys and offsets arrive as numbers or as
// stringified numbers, and sometimes as garbage. Fields keep their raw
// validity so consumers can filter instead of failing the whole parse.
type EntityRange struct {
	Key    LooseInt `json:"key"`
	Offset LooseInt `json:"offset"`
	Length LooseInt `json:"length"`
}

// EntityMap is the decoded entity side-table. Payloads write it either as an
// object keyed by stringified indexes or as an array of key/value wrappers;
// both shapes decode into the same entry list, payload order preserved.
type EntityMap struct {
	Entries []EntityMapEntry
}

// EntityMapEntry is one declared entity-map entry: the key string exactly as
// written in the payload (may be absent in some array-form dumps, may be
// duplicated) and the decoded entity.
type EntityMapEntry struct {
	Key    string
	HasKey bool
	Entity Entity
}

// Entity is one entry of the entity side-table. Concrete types are
// MediaEntity, LinkEntity, TweetEntity and UnknownEntity; consumers switch
// on the concrete type and skip UnknownEntity.
type Entity interface {
	entityType() string
}

// MediaEntity embeds one or more media items by ID, optionally captioned.
// FallbackURL is populated by some older payloads and used only when the
// media side-table has no usable URL.
type MediaEntity struct {
	Items       []MediaItem
	Caption     string
	FallbackURL string
}

func (MediaEntity) entityType() string { return "MEDIA" }

// MediaItem references a media side-table record.
type MediaItem struct {
	MediaID string `json:"mediaId"`
}

// LinkEntity is a plain hyperlink.
type LinkEntity struct {
	URL string
}

func (LinkEntity) entityType() string { return "LINK" }

// TweetEntity references a post quoted inside the article.
type TweetEntity struct {
	TweetID string
}

func (TweetEntity) entityType() string { return "TWEET" }

// UnknownEntity preserves the type tag of entities this tool does not handle.
type UnknownEntity struct {
	Type string
}

func (u UnknownEntity) entityType() string { return u.Type }

// MediaEntityRecord is one row of the article's media side-table.
type MediaEntityRecord struct {
	MediaID string     `json:"media_id"`
	Info    *MediaInfo `json:"media_info"`
}

// MediaInfo carries the variants the API exposes for a single media item.
// Images populate OriginalImgURL, videos populate Video with PreviewImage as
// the poster frame.
type MediaInfo struct {
	OriginalImgURL string        `json:"original_img_url"`
	PreviewImage   *PreviewImage `json:"preview_image"`
	Video          *VideoInfo    `json:"video_info"`
}

// PreviewImage is the reduced rendition the API attaches to videos and to
// images whose original is unavailable.
type PreviewImage struct {
	OriginalImgURL string `json:"original_img_url"`
}

// VideoInfo lists the downloadable renditions of a video.
type VideoInfo struct {
	Variants []VideoVariant `json:"variants"`
}

// VideoVariant is a single rendition. BitRate is zero for HLS playlists.
type VideoVariant struct {
	URL         string `json:"url"`
	BitRate     int64  `json:"bit_rate"`
	ContentType string `json:"content_type"`
}

// TweetInfo is the resolved form of a quoted post. Name, Handle and Text stay
// empty on degraded records created when the lookup failed or was skipped.
type TweetInfo struct {
	ID     string
	URL    string
	Name   string
	Handle string
	Text   string
}
