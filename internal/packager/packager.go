// Package packager zips a beatmap set directory into a temporary .osz archive.
package packager

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"

	"oszshare/internal/fileutil"
	"oszshare/internal/logging"
	"oszshare/internal/services"
)

// Packager writes archives into a scratch directory.
type Packager struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// New returns a Packager writing to dir; an empty dir selects os.TempDir().
func New(dir string, logger *slog.Logger) *Packager {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	return &Packager{dir: dir, now: time.Now, logger: logging.NewComponentLogger(logger, "packager")}
}

// ArchiveName returns the file name for an archive created at t.
func ArchiveName(t time.Time, token string) string {
	return fmt.Sprintf(archivePrefix+"%s-%s.osz", t.UTC().Format("20060102150405"), token)
}

// Package archives the contents of setDir, with entries relative to its
// root, and returns the archive path. The caller owns the file. On any
// failure, including cancellation, no archive is left behind.
func (p *Packager) Package(ctx context.Context, setDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(setDir) == "" || !fileutil.DirExists(setDir) {
		return "", services.Wrap(services.ErrValidation, "packager", "validate", fmt.Sprintf("beatmap directory %q does not exist", setDir), nil)
	}
	root, err := filepath.EvalSymlinks(setDir)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "packager", "validate", fmt.Sprintf("resolve beatmap directory %q", setDir), err)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "packager", "prepare", "create archive directory", err)
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	target := filepath.Join(p.dir, ArchiveName(p.now(), token))

	started := time.Now()
	entries, err := p.write(ctx, root, target)
	if err != nil {
		if rmErr := fileutil.RemoveIfExists(target); rmErr != nil {
			p.logger.Debug("partial archive cleanup failed", logging.String("path", target), logging.Error(rmErr))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", services.Wrap(services.ErrTransient, "packager", "zip", "write archive", err)
	}

	p.logger.Debug("beatmap packaged",
		logging.String("source", setDir),
		logging.String("archive", target),
		logging.Int("entries", entries),
		logging.Duration("elapsed", time.Since(started)),
	)
	return target, nil
}

func (p *Packager) write(ctx context.Context, setDir, target string) (int, error) {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	entries, walkErr := addTree(ctx, zw, setDir)
	closeErr := zw.Close()
	fileErr := out.Close()
	switch {
	case walkErr != nil:
		return entries, walkErr
	case closeErr != nil:
		return entries, closeErr
	default:
		return entries, fileErr
	}
}

func addTree(ctx context.Context, zw *zip.Writer, root string) (int, error) {
	entries := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			children, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				if _, err := zw.Create(name + "/"); err != nil {
					return err
				}
				entries++
			}
			return nil
		}
		var info fs.FileInfo
		switch {
		case d.Type().IsRegular():
			if info, err = d.Info(); err != nil {
				return err
			}
		case d.Type()&fs.ModeSymlink != 0:
			// Linked files are archived by content; linked directories are not
			// descended into.
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
			info = target
		default:
			return nil
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = name
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		if err := copyFile(w, path); err != nil {
			return err
		}
		entries++
		return nil
	})
	return entries, err
}

func copyFile(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}
