package fs

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/dropbox/files"
)

// DropboxFS implements FileSystem over a Dropbox folder. Listings carry the
// Dropbox content hash of every file.
type DropboxFS struct {
	client files.Client
	root   string
}

// NewDropboxFS creates a DropboxFS rooted at the given Dropbox folder.
func NewDropboxFS(token, root string) *DropboxFS {
	cfg := dropbox.Config{
		Token:    token,
		LogLevel: dropbox.LogOff,
	}
	return &DropboxFS{client: files.New(cfg), root: cleanDropboxPath(root)}
}

// cleanDropboxPath returns "" for the Dropbox root and "/a/b" otherwise.
func cleanDropboxPath(p string) string {
	p = path.Clean("/" + strings.Trim(p, "/"))
	if p == "/" {
		return ""
	}
	return p
}

func (d *DropboxFS) abs(p string) string {
	return cleanDropboxPath(d.root + "/" + p)
}

// ReadFile downloads the file at the given path relative to the root.
func (d *DropboxFS) ReadFile(p string) ([]byte, error) {
	_, r, err := d.client.Download(files.NewDownloadArg(d.abs(p)))
	if err != nil {
		return nil, ioError("read", p, dropboxError(err))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ioError("read", p, err)
	}
	return data, nil
}

// Stat returns metadata for the file or folder at the given path.
func (d *DropboxFS) Stat(p string) (FileInfo, error) {
	abs := d.abs(p)
	if abs == "" {
		return FileInfo{Name: "/", IsDir: true}, nil
	}
	md, err := d.client.GetMetadata(files.NewGetMetadataArg(abs))
	if err != nil {
		return FileInfo{}, ioError("stat", p, dropboxError(err))
	}
	switch m := md.(type) {
	case *files.FileMetadata:
		return FileInfo{Name: m.Name, Size: int64(m.Size), ModTime: m.ServerModified}, nil
	case *files.FolderMetadata:
		return FileInfo{Name: m.Name, IsDir: true}, nil
	default:
		return FileInfo{}, ioError("stat", p, os.ErrNotExist)
	}
}

// ReadDir lists the immediate children of the folder at the given path,
// following pagination cursors until the listing is complete.
func (d *DropboxFS) ReadDir(p string) ([]DirEntry, error) {
	res, err := d.client.ListFolder(files.NewListFolderArg(d.abs(p)))
	if err != nil {
		return nil, ioError("readdir", p, dropboxError(err))
	}

	var entries []DirEntry
	for {
		for _, md := range res.Entries {
			entries = append(entries, dropboxEntry(md))
		}
		if !res.HasMore {
			return entries, nil
		}
		res, err = d.client.ListFolderContinue(files.NewListFolderContinueArg(res.Cursor))
		if err != nil {
			return nil, ioError("readdir", p, dropboxError(err))
		}
	}
}

func dropboxEntry(md files.IsMetadata) DirEntry {
	switch m := md.(type) {
	case *files.FileMetadata:
		return DirEntry{Name: m.Name, Type: TypeFile, Hash: m.ContentHash}
	case *files.FolderMetadata:
		return DirEntry{Name: m.Name, Type: TypeDir}
	case *files.DeletedMetadata:
		return DirEntry{Name: m.Name, Type: TypeOther}
	default:
		return DirEntry{Type: TypeOther}
	}
}

// no other way to distinguish not found error
func dropboxError(err error) error {
	if strings.Contains(err.Error(), "not_found") {
		return os.ErrNotExist
	}
	return fmt.Errorf("dropbox: %w", err)
}
