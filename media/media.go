// Package media localizes remote article media into a per-article directory
// rewriting markdown image references to the downloaded copies.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"xarc/config"
	"xarc/jpegquality"
)

// Subdir is the name of the media directory created next to the markdown
// output, image references are rewritten to point into it.
const Subdir = "media"

const refPrefix = "![]("

// Localize downloads every remote image the markdown document embeds into the
// media subdirectory of dir and rewrites the references to the local copies.
// Individual failures never fail the document, offending references keep
// their remote URLs and all errors come back accumulated for the caller to
// log.
func Localize(ctx context.Context, doc string, dir string, cfg *config.MediaConfig, client *http.Client, log *zap.Logger) (string, error) {
	refs := collectImageRefs(doc)
	if len(refs) == 0 {
		return doc, nil
	}

	mediaDir := filepath.Join(dir, Subdir)
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return doc, fmt.Errorf("unable to create media directory: %w", err)
	}

	var errs error
	for i, ref := range refs {
		name, err := localize(ctx, client, ref, mediaDir, i+1, cfg, log)
		if err != nil {
			log.Warn("Unable to localize media", zap.String("url", ref), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		log.Debug("Localized media", zap.String("url", ref), zap.String("file", name))
		doc = strings.ReplaceAll(doc, refPrefix+ref+")", refPrefix+Subdir+"/"+name+")")
	}
	return doc, errs
}

// collectImageRefs returns remote image URLs embedded in the document in
// first-use order without duplicates. Only whole-line image references
// count, inline links stay untouched.
func collectImageRefs(doc string) []string {
	var (
		refs []string
		seen = make(map[string]struct{})
	)
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, refPrefix) || !strings.HasSuffix(line, ")") {
			continue
		}
		ref := line[len(refPrefix) : len(line)-1]
		if !isRemoteRef(ref) {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

func isRemoteRef(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// localize downloads single URL, applies configured conversions and stores
// the result under a sequential name. Returns the stored file name.
func localize(ctx context.Context, client *http.Client, ref, mediaDir string, seq int, cfg *config.MediaConfig, log *zap.Logger) (string, error) {
	data, err := download(ctx, client, ref)
	if err != nil {
		return "", err
	}

	data, ext := process(data, sniffExt(data, ref), cfg, log)

	name := fmt.Sprintf("media_%03d.%s", seq, ext)
	if err := os.WriteFile(filepath.Join(mediaDir, name), data, 0644); err != nil {
		return "", fmt.Errorf("unable to store media file: %w", err)
	}
	return name, nil
}

func download(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to download: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response: %w", err)
	}
	return data, nil
}

// sniffExt determines file extension from content, falling back to the URL
// path when the bytes are not recognized.
func sniffExt(data []byte, ref string) string {
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		return t.Extension
	}
	if u, err := url.Parse(ref); err == nil {
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); len(ext) > 0 {
			return strings.ToLower(ext)
		}
	}
	return "bin"
}

// process applies configured conversions: images wider than the limit are
// downscaled and re-encoded as JPEG, webp is converted to PNG when asked for.
// On any conversion trouble the original bytes are kept.
func process(data []byte, ext string, cfg *config.MediaConfig, log *zap.Logger) ([]byte, string) {
	convertWebp := cfg.ConvertWebp && ext == "webp"

	resize := false
	if cfg.MaxWidth > 0 && (ext == "jpg" || ext == "png" || ext == "webp") {
		if c, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && c.Width > cfg.MaxWidth {
			resize = true
		}
	}
	if !convertWebp && !resize {
		return data, ext
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn("Unable to decode image, keeping original", zap.Error(err))
		return data, ext
	}

	if resize {
		resized := imaging.Resize(img, cfg.MaxWidth, 0, imaging.Lanczos)
		if resized == nil {
			log.Warn("Unable to resize image, keeping original")
			return data, ext
		}

		quality := cfg.JPEGQuality
		if ext == "jpg" {
			// never encode above the quality the source was saved with
			if jr, err := jpegquality.NewWithBytes(data); err == nil && jr.Quality() < quality {
				quality = jr.Quality()
			}
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			log.Warn("Unable to encode resized image, keeping original", zap.Error(err))
			return data, ext
		}
		return buf.Bytes(), "jpg"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		log.Warn("Unable to convert webp image, keeping original", zap.Error(err))
		return data, ext
	}
	return buf.Bytes(), "png"
}
