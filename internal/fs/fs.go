// Package fs provides the raw listing and reading capabilities a source crawls:
// the local filesystem, a git ref, or a Dropbox folder.
package fs

import "time"

// EntryType classifies a directory entry.
type EntryType int

// Directory entry types. Only files and directories take part in a crawl.
const (
	TypeOther EntryType = iota
	TypeFile
	TypeDir
)

// String returns "file", "dir" or "other".
func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	default:
		return "other"
	}
}

// FileInfo holds file metadata.
type FileInfo struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// DirEntry represents a single directory entry. Sha and Hash are only set by
// content-addressed providers.
type DirEntry struct {
	Name string
	Type EntryType
	Sha  string
	Hash string
}

// IsDir reports whether the entry is a directory.
func (e DirEntry) IsDir() bool { return e.Type == TypeDir }

// Lister lists the immediate children of a directory. Paths are slash
// separated and relative to the provider root; "" is the root itself.
type Lister interface {
	ReadDir(path string) ([]DirEntry, error)
}

// Reader reads the full contents of a file.
type Reader interface {
	ReadFile(path string) ([]byte, error)
}

// ShaReader is implemented by providers that can fetch content by the sha
// reported in their listings.
type ShaReader interface {
	ReadFileBySha(sha string) ([]byte, error)
}

// FileSystem abstracts file operations so callers can work with the local
// filesystem, a git object database or a remote store.
type FileSystem interface {
	Lister
	Reader
	Stat(path string) (FileInfo, error)
}
