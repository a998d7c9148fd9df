// Package content prepares parsed article payloads for output generation.
package content

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"xarc/article"
	"xarc/content/text"
	"xarc/misc"
	"xarc/state"
)

// Content is a single article being archived: the parsed payload plus
// everything the output stage needs around it.
type Content struct {
	SrcName string
	Doc     *article.Document

	// Tweets is filled by the pipeline when referenced tweet resolution is on.
	Tweets map[string]article.TweetInfo

	Splitter   *text.Splitter
	WorkDir    string
	ArchivedAt time.Time
}

// Prepare reads and parses a saved or fetched article payload.
func Prepare(ctx context.Context, r io.Reader, srcName string, log *zap.Logger) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read article payload: %w", err)
	}

	doc, err := article.Parse(data, log)
	if err != nil {
		return nil, fmt.Errorf("unable to parse article: %w", err)
	}
	if !doc.Recognized() {
		log.Warn("Payload is not a recognizable article, output will keep raw JSON", zap.String("source", srcName))
	}

	// Make sure article ID is usable - offline dumps may be saved without one
	if len(doc.ID) == 0 {
		refID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("unable to generate article ID: %w", err)
		}
		doc.ID = refID.String()
		log.Warn("Article has no usable ID, generating", zap.Stringer("new_id", refID))
	}

	c := &Content{
		SrcName:    srcName,
		Doc:        doc,
		ArchivedAt: time.Now(),
	}

	if env.Cfg.Document.Excerpt.Enable {
		c.Splitter = text.NewSplitter(log)
	}

	// Save inputs and the prepared model for debugging
	if env.Rpt != nil {
		tmpDir, err := os.MkdirTemp("", misc.GetAppName()+"-")
		if err != nil {
			return nil, fmt.Errorf("unable to create temporary directory: %w", err)
		}
		c.WorkDir = tmpDir
		env.Rpt.Store(fmt.Sprintf("%s-%s", misc.GetAppName(), doc.ID), tmpDir)

		baseSrcName := filepath.Base(srcName)
		if err := os.WriteFile(filepath.Join(tmpDir, baseSrcName), data, 0644); err != nil {
			return nil, fmt.Errorf("unable to write input payload for debugging: %w", err)
		}
		if err := os.WriteFile(filepath.Join(tmpDir, baseSrcName+"_prepared"), []byte(c.String()), 0644); err != nil {
			return nil, fmt.Errorf("unable to write prepared model for debugging: %w", err)
		}
	}

	return c, nil
}

// PlainText returns the best plain rendition of the article body for
// excerpts: the payload plain text when present, the preview text otherwise.
func (c *Content) PlainText() string {
	if c == nil || c.Doc == nil {
		return ""
	}
	if len(c.Doc.PlainText) > 0 {
		return c.Doc.PlainText
	}
	return c.Doc.PreviewText
}

// Excerpt builds a short description from the leading sentences of the
// article text. Empty when splitting is off or there is no text.
func (c *Content) Excerpt(sentences int) string {
	if c == nil || c.Splitter == nil {
		return ""
	}
	return c.Splitter.First(c.PlainText(), sentences)
}
