// Package ingest validates an uploaded archive and turns it into a new job.
package ingest

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"nereus/pkg/api"
	"nereus/pkg/store"
	"nereus/pkg/util/context"
	"nereus/pkg/util/fsutil"

	"github.com/pkg/errors"
)

const (
	// ArchiveExt is the extension expected for uploads
	ArchiveExt = ".zip"
	uploadFile = "upload.zip"
)

// ImageExts are the extensions of the files considered as usable input
var ImageExts = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif"}

// Result is the outcome of a successful ingest
type Result struct {
	Job        store.Job
	ImageCount int
}

// Gateway creates jobs from uploaded archives
type Gateway struct {
	store store.Store
}

// NewGateway returns a Gateway creating jobs in s
func NewGateway(s store.Store) Gateway {
	return Gateway{store: s}
}

// ValidateFilename returns a validation error if filename is not an archive name.
func ValidateFilename(filename string) error {
	if filename == "" || !strings.HasSuffix(strings.ToLower(filename), ArchiveExt) {
		return api.NewError(api.KindValidation, "Only ZIP files are accepted")
	}
	return nil
}

// IsImage returns true if name has one of ImageExts, case insensitive
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Ingest creates a job from the archive read from r.
// The job directory is removed if anything goes wrong once it exists.
func (g Gateway) Ingest(ctx context.Context, r io.Reader, filename string) (Result, error) {
	if err := ValidateFilename(filename); err != nil {
		return Result{}, err
	}

	job, err := g.store.CreateJob(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "cannot create job")
	}
	ctx = context.WithJobID(ctx, job.ID)
	ctx.Logger().Infof("created job with directories %s", job.RootDir)

	count, err := g.fill(ctx, job, r)
	if err != nil {
		if rerr := os.RemoveAll(job.RootDir); rerr != nil {
			ctx.Logger().Errorf("cannot remove job directory %s: %s", job.RootDir, rerr)
		}
		return Result{}, err
	}
	ctx.Logger().Infof("found %d image files", count)
	return Result{Job: job, ImageCount: count}, nil
}

func (g Gateway) fill(ctx context.Context, job store.Job, r io.Reader) (int, error) {
	zipPath := filepath.Join(job.RootDir, uploadFile)
	size, err := save(zipPath, r)
	if err != nil {
		return 0, api.WrapError(err, api.KindValidation, "Error reading file")
	}
	if size == 0 {
		return 0, api.NewError(api.KindValidation, "Empty file uploaded")
	}
	ctx.Logger().Infof("saved %d bytes to %s", size, zipPath)

	n, err := extract(zipPath, job.InputDir)
	if err != nil {
		return 0, err
	}
	ctx.Logger().Infof("extracted %d files", n)

	count, err := countImages(job.InputDir)
	if err != nil {
		return 0, errors.Wrap(err, "cannot count images")
	}
	if count == 0 {
		return 0, api.NewError(api.KindNoUsableInput, "No image files found in ZIP")
	}
	return count, nil
}

func save(p string, r io.Reader) (int64, error) {
	f, err := os.Create(p)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot create %s", p)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errors.Wrapf(err, "cannot write %s", p)
	}
	return n, nil
}

// extract writes the content of the archive at zipPath into dir and returns the number of files.
func extract(zipPath, dir string) (int, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		if zr != nil {
			zr.Close()
		}
		return 0, api.WrapError(err, api.KindBadArchive, "Invalid ZIP file")
	}
	defer zr.Close()

	n := 0
	for _, f := range zr.File {
		target, ok := fsutil.Resolve(dir, f.Name)
		if !ok {
			return 0, api.NewError(api.KindBadArchive, "Invalid ZIP file: entry %s is outside of the archive root", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return 0, errors.Wrapf(err, "cannot create directory %s", target)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, "cannot create directory %s", filepath.Dir(target))
	}
	src, err := f.Open()
	if err != nil {
		return api.WrapError(err, api.KindBadArchive, "Invalid ZIP file")
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", target)
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return api.WrapError(err, api.KindBadArchive, "Invalid ZIP file")
	}
	return nil
}

func countImages(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && IsImage(d.Name()) {
			count++
		}
		return nil
	})
	return count, err
}
