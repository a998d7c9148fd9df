package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"xarc/archive"
	"xarc/content"
	"xarc/convert/markdown"
	"xarc/fetch"
	"xarc/history"
	"xarc/state"
)

// Run implements the convert command: offline conversion of saved article
// payloads from a single file, a directory tree or a zip archive.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	applyFeatureFlags(cmd, env)

	if env.Cfg.Document.Cover.Generate {
		env.DefaultCoverSVG = defaultCoverSVG
	}

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	// Offline runs leave quoted posts degraded unless resolution is asked for
	// explicitly and credentials are around.
	var lookup markdown.TweetLookup
	if cmd.Bool("resolve-tweets") {
		if client, cerr := fetch.New(&env.Cfg.Auth, env.Log); cerr != nil {
			log.Warn("Quoted posts will not be resolved", zap.Error(cerr))
		} else {
			lookup = client
		}
	}

	idx, err := history.Open(&env.Cfg.History, log)
	if err != nil {
		log.Warn("Archive index disabled for this run", zap.Error(err))
		idx = nil
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil {
			log.Warn("Unable to close archive index", zap.Error(cerr))
		}
	}()

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, lookup, idx, log)
}

// RunFetch implements the fetch command: pull one article from the API by its
// URL or rest ID and convert it.
func RunFetch(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("fetch")

	ref := cmd.Args().Get(0)
	if len(ref) == 0 {
		return errors.New("no article URL or ID has been specified")
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite, env.Refetch = cmd.Bool("overwrite"), cmd.Bool("refetch")
	applyFeatureFlags(cmd, env)

	if env.Cfg.Document.Cover.Generate {
		env.DefaultCoverSVG = defaultCoverSVG
	}

	id, err := fetch.ParseArticleRef(ref)
	if err != nil {
		return err
	}

	client, err := fetch.New(&env.Cfg.Auth, env.Log)
	if err != nil {
		return err
	}

	var lookup markdown.TweetLookup
	if env.Cfg.Document.Tweets.Resolve && !cmd.Bool("no-tweets") {
		lookup = client
	}

	idx, err := history.Open(&env.Cfg.History, log)
	if err != nil {
		log.Warn("Archive index disabled for this run", zap.Error(err))
		idx = nil
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil {
			log.Warn("Unable to close archive index", zap.Error(cerr))
		}
	}()

	if idx.Seen(id) && !env.Refetch {
		log.Info("Article already archived, skipping (use --refetch to force)", zap.String("id", id))
		return nil
	}

	log.Info("Fetching starting", zap.String("id", id), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Fetching completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	_, raw, err := client.FetchArticle(ctx, id)
	if err != nil {
		return err
	}

	return processArticle(ctx, bytes.NewReader(raw), id+".json", dst, lookup, idx, log)
}

// applyFeatureFlags turns on optional pipeline features requested on the
// command line. Flags only ever enable, otherwise configuration stays
// authoritative.
func applyFeatureFlags(cmd *cli.Command, env *state.LocalEnv) {
	if cmd.Bool("media") {
		env.Cfg.Document.Media.Download = true
	}
	if cmd.Bool("preview") {
		env.Cfg.Document.Preview.Enable = true
	}
	if cmd.Bool("bundle") {
		env.Cfg.Document.Bundle.Enable = true
	}
}

// process handles the core conversion logic independently of CLI framework. It
// determines the input type (directory, archive, or single file) and processes
// accordingly.
func process(ctx context.Context, src, dst string, lookup markdown.TweetLookup, idx *history.Index, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, lookup, idx, log); err != nil {
				return errors.New("unable to process directory")
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		arc, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if arc {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, "", dst, lookup, idx, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		art, enc, err := isArticleFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if art && len(tail) == 0 {
			// we have article payload, it cannot have tail
			// encoding will be handled properly by processArticle
			if file, err := os.Open(head); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			} else {
				defer file.Close()
				if err := processArticle(ctx, selectReader(file, enc), filepath.Base(head), dst, lookup, idx, log); err != nil {
					log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
				}
			}
			break
		}
		return fmt.Errorf("input was not recognized as article payload (%s)", head)

	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding article payloads and processes them.
func processDir(ctx context.Context, dir, dst string, lookup markdown.TweetLookup, idx *history.Index, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		arc, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if arc {
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, lookup, idx, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		art, enc, err := isArticleFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !art {
			log.Debug("Skipping file, not recognized as article or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processArticle(ctx, selectReader(file, enc), src, dst, lookup, idx, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds article payloads under
// "pathIn" and processes them.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, lookup markdown.TweetLookup, idx *history.Index, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, func(arcName string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		art, enc, err := isArticleInArchive(f)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", arcName), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !art {
			log.Debug("Skipping file, not recognized as article", zap.String("archive", arcName), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arcName), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		cp := state.EnvFromContext(ctx).CodePage

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := processArticle(ctx, selectReader(r, enc), filepath.Join(pathOut, pathInArchive), dst, lookup, idx, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arcName), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArticle converts a single payload. "src" is part of the source path
// (always including file name) relative to the original path. When actual file
// was specified it will be just base file name without a path. When looking
// inside archive or directory it will be relative path inside archive or
// directory (including base file name). "dst" is the destination directory
// where the article directory should be created.
func processArticle(ctx context.Context, r io.Reader, src, dst string, lookup markdown.TweetLookup, idx *history.Index, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var refID, outputName string

	log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		// NOTE: some of golang graphic processing libraries are not mature
		// enough if multiple articles are being processed we do not want to stop.
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else {
			log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("ref_id", refID))
		}
	}(time.Now())

	c, err := content.Prepare(ctx, r, src, log)
	if err != nil {
		return fmt.Errorf("unable to parse article source (%s): %w", src, err)
	}

	refID = c.Doc.ID

	// Determine output file name and path based on input and configuration.
	outputName = buildOutputPath(c, src, dst, env)

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := generate(ctx, c, outputName, lookup, log); err != nil {
		return fmt.Errorf("unable to generate output: %w", err)
	}

	if err := idx.Record(history.Entry{ID: c.Doc.ID, Title: c.Doc.Title, Path: outputName, ArchivedAt: c.ArchivedAt}); err != nil {
		log.Warn("Unable to record article in archive index", zap.Error(err))
	}

	// Store conversion result for debugging
	if env.Rpt != nil {
		env.Rpt.Store(fmt.Sprintf("result-%s%s", refID, filepath.Ext(outputName)), outputName)
	}

	return nil
}
