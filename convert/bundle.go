package convert

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	fixzip "github.com/hidez8891/zip"
)

// bundleArticle packs the article directory into a zip archive placed next to
// it, named after the directory. Entries keep the directory name as prefix so
// extraction recreates the article layout.
func bundleArticle(dir string, fixZip bool) (string, error) {
	bundleName := dir + ".zip"

	tmp, err := os.CreateTemp(filepath.Dir(dir), filepath.Base(dir)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("unable to create temporary archive: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	zw := zip.NewWriter(tmp)
	if err := addDirToZip(zw, dir); err != nil {
		zw.Close()
		tmp.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("unable to close bundle archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("unable to finalize bundle archive: %w", err)
	}

	if fixZip {
		return bundleName, copyZipWithoutDataDescriptors(tmpName, bundleName)
	}
	return bundleName, copyFile(tmpName, bundleName)
}

func addDirToZip(zw *zip.Writer, dir string) error {
	prefix := filepath.Base(dir)

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("unable to resolve bundle entry name (%s): %w", path, err)
		}

		fh, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("unable to build bundle entry header (%s): %w", path, err)
		}
		fh.Name = filepath.ToSlash(filepath.Join(prefix, rel))
		fh.Method = zip.Deflate

		w, err := zw.CreateHeader(fh)
		if err != nil {
			return fmt.Errorf("unable to create bundle entry (%s): %w", fh.Name, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("unable to read bundle entry (%s): %w", path, err)
		}
		defer f.Close()

		if _, err := io.Copy(w, f); err != nil {
			return fmt.Errorf("unable to store bundle entry (%s): %w", fh.Name, err)
		}
		return nil
	})
}

func copyZipWithoutDataDescriptors(from, to string) error {

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destinationFile.Close()

	if _, err = io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}
