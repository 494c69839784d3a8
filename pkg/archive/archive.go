// Package archive packs a job output directory into a zip archive.
package archive

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"nereus/pkg/api"
	"nereus/pkg/store"

	"github.com/pkg/errors"
)

// Pack writes a zip archive of every regular file of dir to w.
// Entry names are relative to dir and slash separated. Job markers are skipped.
// It returns the number of files written, an EmptyResult error if there is none.
func Pack(ctx context.Context, dir string, w io.Writer) (int, error) {
	files, err := list(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, api.NewError(api.KindEmptyResult, "No files found in output directory")
	}

	zw := zip.NewWriter(w)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return 0, api.WrapError(err, api.KindPackaging, "Failed to create download package")
		}
		if err := add(zw, dir, rel); err != nil {
			return 0, api.WrapError(err, api.KindPackaging, "Failed to create download package")
		}
	}
	if err := zw.Close(); err != nil {
		return 0, api.WrapError(err, api.KindPackaging, "Failed to create download package")
	}
	return len(files), nil
}

// PackFile writes the archive of dir to dest.
// The archive is written to a temporary file renamed on success, dest is never left half written.
func PackFile(ctx context.Context, dir, dest string) (int, error) {
	f, err := os.CreateTemp(filepath.Dir(dest), ".pack-*.zip")
	if err != nil {
		return 0, api.WrapError(err, api.KindPackaging, "Failed to create download package")
	}
	tmp := f.Name()
	n, err := Pack(ctx, dir, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = api.WrapError(cerr, api.KindPackaging, "Failed to create download package")
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, api.WrapError(err, api.KindPackaging, "Failed to create download package")
	}
	return n, nil
}

// list returns the slash separated relative paths of the regular files of dir, in lexical order.
func list(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || store.IsMarker(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if os.IsNotExist(errors.Cause(err)) {
		return nil, store.NotFoundError("output directory")
	}
	if err != nil {
		return nil, api.WrapError(err, api.KindPackaging, "Failed to create download package")
	}
	return files, nil
}

func add(zw *zip.Writer, dir, rel string) error {
	p := filepath.Join(dir, filepath.FromSlash(rel))
	src, err := os.Open(p)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", p)
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", p)
	}
	h, err := zip.FileInfoHeader(fi)
	if err != nil {
		return errors.Wrapf(err, "cannot create zip header for %s", p)
	}
	h.Name = rel
	h.Method = zip.Deflate
	dst, err := zw.CreateHeader(h)
	if err != nil {
		return errors.Wrapf(err, "cannot add %s to archive", rel)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, "cannot write %s to archive", rel)
	}
	return nil
}
