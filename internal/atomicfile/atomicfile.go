// Package atomicfile writes files so that a destination is only ever replaced
// whole, by a rename from a temporary directory.
package atomicfile

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	mfs "github.com/CageChen/filesource/internal/fs"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrOutsideRoot is returned for a path that resolves above the writer's root.
var ErrOutsideRoot = errors.New("path escapes the source root")

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer writes files below root, staging them in tmp. tmp should live on the
// same volume as root so the final rename is atomic.
type Writer struct {
	fs   afero.Fs
	root string
	tmp  string
}

// New returns a Writer over fsys.
func New(fsys afero.Fs, root, tmp string) *Writer {
	return &Writer{fs: fsys, root: filepath.Clean(root), tmp: filepath.Clean(tmp)}
}

// NewOS returns a Writer over the OS filesystem.
func NewOS(root, tmp string) *Writer {
	return New(afero.NewOsFs(), root, tmp)
}

// Clean resolves rel, with or without a leading slash, to a rooted slash path.
func Clean(rel string) (string, error) {
	c := path.Clean(strings.TrimPrefix(filepath.ToSlash(rel), "/"))
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrOutsideRoot
	}
	return "/" + c, nil
}

// WriteFile writes data to rel below the root. A crash leaves either the old
// destination or the new one, plus possibly an orphan in tmp.
func (w *Writer) WriteFile(rel string, data []byte) error {
	return w.WriteFileContext(context.Background(), rel, data)
}

// WriteFileContext is WriteFile, except that the destination is left alone
// once ctx is done: the staged file is removed instead of renamed.
func (w *Writer) WriteFileContext(ctx context.Context, rel string, data []byte) error {
	p, err := Clean(rel)
	if err != nil {
		return &mfs.IOError{Op: "write", Path: rel, Err: err}
	}
	dest := filepath.Join(w.root, filepath.FromSlash(p))

	if err := w.fs.MkdirAll(w.tmp, dirPerm); err != nil {
		return &mfs.IOError{Op: "mkdir", Path: w.tmp, Err: err}
	}
	if err := w.fs.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return &mfs.IOError{Op: "mkdir", Path: path.Dir(p), Err: err}
	}

	tmp := filepath.Join(w.tmp, path.Base(p)+"."+uuid.NewString())
	if err := w.stage(tmp, data); err != nil {
		_ = w.fs.Remove(tmp)
		return &mfs.IOError{Op: "write", Path: p, Err: err}
	}
	if err := ctx.Err(); err != nil {
		_ = w.fs.Remove(tmp)
		return err
	}
	if err := w.fs.Rename(tmp, dest); err != nil {
		_ = w.fs.Remove(tmp)
		return &mfs.IOError{Op: "rename", Path: p, Err: err}
	}
	return nil
}

// stage writes data to name and flushes it to stable storage.
func (w *Writer) stage(name string, data []byte) error {
	f, err := w.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
