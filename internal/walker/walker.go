// Package walker crawls a directory tree into a depth-first, deterministically
// ordered list of file descriptors.
package walker

import (
	"context"
	"path"
	"regexp"
	"sort"

	mfs "github.com/CageChen/filesource/internal/fs"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// Descriptor references a file found by a crawl. Path is rooted at "/" and
// relative to the source root. RawPath is the same path as the provider
// spells it, before unicode normalization, and is what reads go through.
type Descriptor struct {
	Path    string `json:"filepath"`
	RawPath string `json:"-"`
	Sha     string `json:"sha,omitempty"`
	Hash    string `json:"hash,omitempty"`
}

// Sorter orders sibling entries by key.
type Sorter interface {
	Key(name string, isDir bool) string
}

// ExcludeFunc reports whether an entry, and for directories its whole
// subtree, is skipped.
type ExcludeFunc func(entry mfs.DirEntry) bool

var reExcluded = regexp.MustCompile(`^\.|^node_modules$`)

// DefaultExclude skips names starting with "." and node_modules, plus any
// name isBinary accepts when isBinary is non-nil.
func DefaultExclude(isBinary func(name string) bool) ExcludeFunc {
	return func(entry mfs.DirEntry) bool {
		if reExcluded.MatchString(entry.Name) {
			return true
		}
		return isBinary != nil && isBinary(entry.Name)
	}
}

// Config holds what a crawl needs from its source.
type Config struct {
	FS      mfs.Lister
	Sorter  Sorter
	Exclude ExcludeFunc
	// Match filters files by root-relative path without the leading slash.
	// nil matches everything.
	Match func(rel string) bool
	// MaxDepth bounds how many directory levels below the root are entered;
	// no descriptor has more than MaxDepth path segments.
	MaxDepth int
}

// Walker crawls the tree described by its Config.
type Walker struct {
	cfg Config
}

// New returns a Walker. A MaxDepth below 1 is treated as 1.
func New(cfg Config) *Walker {
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 1
	}
	if cfg.Exclude == nil {
		cfg.Exclude = func(mfs.DirEntry) bool { return false }
	}
	return &Walker{cfg: cfg}
}

// Walk lists matching files depth-first. Within each directory entries come
// in Sorter order regardless of the listing order or which sub-walk finishes
// first. The first listing failure aborts the crawl.
func (w *Walker) Walk(ctx context.Context) ([]Descriptor, error) {
	return w.walk(ctx, "", "/", 1)
}

type entry struct {
	mfs.DirEntry
	raw string
	key string
}

func (w *Walker) walk(ctx context.Context, dir, prefix string, depth int) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	listing, err := w.cfg.FS.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, len(listing))
	for i, e := range listing {
		raw := e.Name
		// fix decomposed names, e.g. from HFS+
		e.Name = norm.NFC.String(e.Name)
		entries[i] = entry{DirEntry: e, raw: raw, key: w.cfg.Sorter.Key(e.Name, e.IsDir())}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].raw < entries[j].raw
	})

	slots := make([][]Descriptor, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		if w.cfg.Exclude(e.DirEntry) {
			continue
		}
		switch e.Type {
		case mfs.TypeDir:
			if depth >= w.cfg.MaxDepth {
				continue
			}
			g.Go(func() error {
				sub, err := w.walk(gctx, path.Join(dir, e.raw), prefix+e.Name+"/", depth+1)
				slots[i] = sub
				return err
			})
		case mfs.TypeFile:
			filepath := prefix + e.Name
			if w.cfg.Match != nil && !w.cfg.Match(filepath[1:]) {
				continue
			}
			slots[i] = []Descriptor{{
				Path:    filepath,
				RawPath: "/" + path.Join(dir, e.raw),
				Sha:     e.Sha,
				Hash:    e.Hash,
			}}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Descriptor, 0, len(slots))
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}
