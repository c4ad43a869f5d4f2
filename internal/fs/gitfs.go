package fs

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"
)

// GitFS implements FileSystem by reading from a git ref (branch, tag, or commit).
// Listings carry the blob sha of every file, and content can be fetched by sha.
type GitFS struct {
	repoPath string
	ref      string
	subPath  string
}

// NewGitFS creates a GitFS that reads files from the given ref in the repository
// at repoPath. A non-empty subPath roots the filesystem at that tree inside the ref.
func NewGitFS(repoPath, ref, subPath string) *GitFS {
	return &GitFS{repoPath: repoPath, ref: ref, subPath: strings.Trim(subPath, "/")}
}

func (g *GitFS) git(args ...string) ([]byte, error) {
	cmd := exec.Command("git", append([]string{"-C", g.repoPath}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if strings.Contains(stderr, "does not exist") || strings.Contains(stderr, "not exist") {
				return nil, os.ErrNotExist
			}
			return nil, fmt.Errorf("git %s: %s", strings.Join(args, " "), stderr)
		}
		return nil, err
	}
	return out, nil
}

func (g *GitFS) objPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "." {
		p = ""
	}
	return path.Join(g.subPath, p)
}

// ReadFile reads the contents of the file at the given path from the git ref.
func (g *GitFS) ReadFile(p string) ([]byte, error) {
	objPath := g.objPath(p)
	if objPath == "" {
		return nil, ioError("read", p, errors.New("cannot read directory as file"))
	}
	out, err := g.git("show", g.ref+":"+objPath)
	if err != nil {
		return nil, ioError("read", p, err)
	}
	return out, nil
}

// ReadFileBySha reads a blob directly from the object database.
func (g *GitFS) ReadFileBySha(sha string) ([]byte, error) {
	out, err := g.git("cat-file", "blob", sha)
	if err != nil {
		return nil, ioError("read", sha, err)
	}
	return out, nil
}

// Stat returns metadata for the file or directory at the given path in the git ref.
func (g *GitFS) Stat(p string) (FileInfo, error) {
	objPath := g.objPath(p)

	// For root, check if the ref exists at all
	if objPath == "" {
		if _, err := g.git("rev-parse", "--verify", g.ref); err != nil {
			return FileInfo{}, ioError("stat", p, os.ErrNotExist)
		}
		return FileInfo{
			Name:    g.ref,
			IsDir:   true,
			ModTime: g.getModTime("."),
		}, nil
	}

	// Use ls-tree to determine if the path is a file or directory
	out, err := g.git("ls-tree", g.ref, objPath)
	if err != nil {
		return FileInfo{}, ioError("stat", p, os.ErrNotExist)
	}

	line := strings.TrimSpace(string(out))
	if line == "" {
		return FileInfo{}, ioError("stat", p, os.ErrNotExist)
	}

	// Parse ls-tree output: "<mode> <type> <hash>\t<name>"
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return FileInfo{}, ioError("stat", p, os.ErrNotExist)
	}

	info := FileInfo{
		Name:    path.Base(objPath),
		IsDir:   fields[1] == "tree",
		ModTime: g.getModTime(objPath),
	}
	if !info.IsDir {
		if sizeOut, err := g.git("cat-file", "-s", fields[2]); err == nil {
			info.Size, _ = strconv.ParseInt(strings.TrimSpace(string(sizeOut)), 10, 64)
		}
	}
	return info, nil
}

// ReadDir lists the immediate children of the directory at the given path in
// the git ref. Blobs are files, trees are directories, anything else (e.g.
// submodule commits) is TypeOther.
func (g *GitFS) ReadDir(p string) ([]DirEntry, error) {
	objPath := g.objPath(p)

	// git ls-tree <ref> [<path>/] -- lists immediate children
	args := []string{"ls-tree", g.ref}
	if objPath != "" {
		args = append(args, objPath+"/")
	}
	out, err := g.git(args...)
	if err != nil {
		return nil, ioError("readdir", p, err)
	}
	// git has no empty trees below the root, so no output means no such path
	if objPath != "" && len(strings.TrimSpace(string(out))) == 0 {
		return nil, ioError("readdir", p, os.ErrNotExist)
	}

	var entries []DirEntry
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		entry, ok := parseLsTree(line)
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func parseLsTree(line string) (DirEntry, bool) {
	tabIdx := strings.IndexByte(line, '\t')
	if tabIdx < 0 {
		return DirEntry{}, false
	}
	fields := strings.Fields(line[:tabIdx])
	if len(fields) < 3 {
		return DirEntry{}, false
	}
	entry := DirEntry{Name: path.Base(unquote(line[tabIdx+1:]))}
	switch fields[1] {
	case "blob":
		entry.Type = TypeFile
		entry.Sha = fields[2]
	case "tree":
		entry.Type = TypeDir
	default:
		entry.Type = TypeOther
	}
	return entry, true
}

// unquote undoes git's C-style quoting of names with special characters.
func unquote(name string) string {
	if len(name) < 2 || name[0] != '"' {
		return name
	}
	if s, err := strconv.Unquote(name); err == nil {
		return s
	}
	return name
}

func (g *GitFS) getModTime(p string) time.Time {
	args := []string{"log", "-1", "--format=%ct", g.ref}
	if p != "." && p != "" {
		args = append(args, "--", p)
	}
	out, err := g.git(args...)
	if err != nil {
		return time.Time{}
	}
	ts := strings.TrimSpace(string(out))
	if ts == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
