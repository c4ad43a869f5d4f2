package fs

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalFS implements FileSystem on top of an afero.Fs, the OS filesystem by
// default.
type LocalFS struct {
	fs   afero.Fs
	root string
}

// NewLocalFS creates a LocalFS rooted at the given directory on disk. A
// relative root is resolved against the working directory.
func NewLocalFS(root string) *LocalFS {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return NewLocalFSWith(afero.NewOsFs(), root)
}

// NewLocalFSWith creates a LocalFS rooted at root inside fsys. root is only
// cleaned, since a relative path means nothing to an in-memory fsys.
func NewLocalFSWith(fsys afero.Fs, root string) *LocalFS {
	return &LocalFS{fs: fsys, root: filepath.Clean(root)}
}

// Root returns the root directory as given to the constructor, cleaned.
// For NewLocalFS it is absolute.
func (l *LocalFS) Root() string { return l.root }

// Afero returns the underlying filesystem so writers share the same primitives.
func (l *LocalFS) Afero() afero.Fs { return l.fs }

func (l *LocalFS) abs(path string) string {
	if path == "" || path == "." {
		return l.root
	}
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// ReadFile reads the contents of the file at the given path relative to the root.
func (l *LocalFS) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(l.fs, l.abs(path))
	if err != nil {
		return nil, ioError("read", path, err)
	}
	return data, nil
}

// Stat returns metadata for the file or directory at the given path relative to the root.
func (l *LocalFS) Stat(path string) (FileInfo, error) {
	info, err := l.fs.Stat(l.abs(path))
	if err != nil {
		return FileInfo{}, ioError("stat", path, err)
	}
	return FileInfo{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// ReadDir lists the immediate children of the directory at the given path
// relative to the root. Symlinks are followed when classifying entries.
func (l *LocalFS) ReadDir(path string) ([]DirEntry, error) {
	dir := l.abs(path)
	if dir == string(filepath.Separator) {
		return nil, ioError("readdir", dir, ErrGuardedRoot)
	}
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, ioError("readdir", path, err)
	}
	result := make([]DirEntry, len(infos))
	for i, info := range infos {
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := l.fs.Stat(filepath.Join(dir, info.Name()))
			if err != nil {
				return nil, ioError("stat", filepath.Join(path, info.Name()), err)
			}
			info = target
		}
		result[i] = DirEntry{Name: info.Name(), Type: typeOf(info)}
	}
	return result, nil
}

func typeOf(info os.FileInfo) EntryType {
	switch {
	case info.IsDir():
		return TypeDir
	case info.Mode().IsRegular():
		return TypeFile
	default:
		return TypeOther
	}
}
