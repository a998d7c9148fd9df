package convert

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"xarc/config"
	"xarc/content"
	"xarc/convert/markdown"
	"xarc/convert/preview"
	"xarc/media"
	"xarc/state"
	imgutil "xarc/utils/images"
)

// mediaClient pulls article media. The image CDN needs no authentication so
// a plain client is enough.
var mediaClient = &http.Client{Timeout: 2 * time.Minute}

// coverFileName is the placeholder cover written into the article directory.
const coverFileName = "cover.png"

// generate renders prepared content to markdown and fills the article
// directory: the document itself plus whatever cover, localized media,
// preview and bundle the configuration asks for.
func generate(ctx context.Context, c *content.Content, outputPath string, lookup markdown.TweetLookup, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)
	cfg := &env.Cfg.Document

	tweetCtx := ctx
	if d := cfg.Tweets.TweetTimeout(); lookup != nil && d > 0 {
		var cancel context.CancelFunc
		tweetCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	c.Tweets = markdown.ResolveTweets(tweetCtx, c.Doc, lookup, log)

	body, coverURL := markdown.Render(c.Doc, c.Tweets, log)

	articleDir := filepath.Dir(outputPath)
	if len(coverURL) == 0 && cfg.Cover.Generate {
		name, err := generateCover(articleDir, &cfg.Cover, env.DefaultCoverSVG, log)
		if err != nil {
			log.Warn("Unable to generate placeholder cover", zap.Error(err))
		} else {
			coverURL = name
		}
	}

	doc := body
	if len(coverURL) > 0 {
		doc = "![](" + coverURL + ")\n\n" + body
	}

	if cfg.Media.Download {
		localized, err := media.Localize(ctx, doc, articleDir, &cfg.Media, mediaClient, log)
		if err != nil {
			log.Warn("Some media could not be localized", zap.Error(err))
		}
		doc = localized
	}

	out := doc
	if cfg.Excerpt.Enable {
		out = buildFrontMatter(c, cfg.Excerpt.Sentences, log) + doc
	}

	if err := os.WriteFile(outputPath, []byte(out), 0644); err != nil {
		return fmt.Errorf("unable to write markdown output: %w", err)
	}

	if cfg.Preview.Enable {
		previewPath := strings.TrimSuffix(outputPath, outputExt) + ".html"
		title := strings.TrimSpace(c.Doc.Title)
		if len(title) == 0 {
			title = c.Doc.ID
		}
		// front matter stays out of the preview, goldmark would render it as text
		if err := preview.Generate(doc, title, previewPath, log); err != nil {
			log.Warn("Unable to generate HTML preview", zap.String("file", previewPath), zap.Error(err))
		}
	}

	if cfg.Bundle.Enable {
		bundleName, err := bundleArticle(articleDir, cfg.Bundle.FixZip)
		if err != nil {
			return fmt.Errorf("unable to bundle article directory: %w", err)
		}
		log.Debug("Bundled article directory", zap.String("bundle", bundleName))
	}
	return nil
}

// generateCover rasterizes the embedded stencil into a placeholder cover in
// the article directory and returns the name to reference it by.
func generateCover(articleDir string, cfg *config.CoverConfig, stencil []byte, log *zap.Logger) (string, error) {
	if len(stencil) == 0 {
		return "", fmt.Errorf("no cover stencil available")
	}
	img, err := imgutil.RasterizeSVGToImage(stencil, cfg.Width, cfg.Height)
	if err != nil {
		return "", fmt.Errorf("unable to rasterize cover stencil: %w", err)
	}
	data, err := imgutil.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("unable to encode cover: %w", err)
	}
	if err := os.WriteFile(filepath.Join(articleDir, coverFileName), data, 0644); err != nil {
		return "", fmt.Errorf("unable to write cover: %w", err)
	}
	log.Debug("Generated placeholder cover", zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))
	return coverFileName, nil
}
