package markdown

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"xarc/article"
)

// Posts quoted inside an article are resolved before rendering; the renderer
// itself never touches the network.

// TweetLookup resolves one quoted post by ID. The fetch client implements it
// for online conversions; offline runs pass nil and every quote degrades to
// its status URL.
type TweetLookup interface {
	LookupTweet(ctx context.Context, id string) (*article.TweetInfo, error)
}

const summaryLimit = 280

// ReferencedTweetIDs lists the post IDs referenced from the entity map in
// first-appearance order, deduplicated.
func ReferencedTweetIDs(doc *article.Document) []string {
	if doc == nil || doc.Content == nil {
		return nil
	}
	var ids []string
	seen := make(map[string]bool)
	for _, entry := range doc.Content.Entities.Entries {
		tw, ok := entry.Entity.(article.TweetEntity)
		if !ok || tw.TweetID == "" || seen[tw.TweetID] {
			continue
		}
		seen[tw.TweetID] = true
		ids = append(ids, tw.TweetID)
	}
	return ids
}

// ResolveTweets looks up every referenced post, one lookup at a time. The
// sequence is deliberate, fanning out would trip upstream rate limits. Every
// ID gets a record: lookups that fail, get cancelled or are skipped leave
// the pre-filled degraded record with just the ID and the generic status
// URL, and the conversion carries on.
func ResolveTweets(ctx context.Context, doc *article.Document, lookup TweetLookup, log *zap.Logger) map[string]article.TweetInfo {
	ids := ReferencedTweetIDs(doc)
	if len(ids) == 0 {
		return nil
	}
	resolved := make(map[string]article.TweetInfo, len(ids))
	for _, id := range ids {
		resolved[id] = article.TweetInfo{ID: id, URL: GenericTweetURL(id)}
	}
	if lookup == nil {
		return resolved
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			log.Warn("Quoted post resolution interrupted", zap.Error(err))
			break
		}
		info, err := lookup.LookupTweet(ctx, id)
		if err != nil || info == nil {
			log.Warn("Unable to resolve quoted post", zap.String("id", id), zap.Error(err))
			continue
		}
		norm := *info
		if norm.ID == "" {
			norm.ID = id
		}
		norm.Handle = strings.TrimPrefix(norm.Handle, "@")
		norm.Text = SummarizeText(norm.Text)
		if norm.URL == "" {
			norm.URL = CanonicalTweetURL(norm.Handle, norm.ID)
		}
		resolved[id] = norm
	}
	return resolved
}

// SummarizeText collapses runs of whitespace and newlines to single spaces
// and cuts the result at 280 characters with a trailing ellipsis.
func SummarizeText(s string) string {
	out := strings.Join(strings.Fields(s), " ")
	runes := []rune(out)
	if len(runes) > summaryLimit {
		out = string(runes[:summaryLimit]) + "…"
	}
	return out
}

// CanonicalTweetURL builds the status URL for a post, falling back to the
// handle-independent form when the author is unknown.
func CanonicalTweetURL(handle, id string) string {
	if handle != "" {
		return "https://x.com/" + handle + "/status/" + id
	}
	return GenericTweetURL(id)
}

// GenericTweetURL is the handle-independent status URL.
func GenericTweetURL(id string) string {
	return "https://x.com/i/web/status/" + id
}
