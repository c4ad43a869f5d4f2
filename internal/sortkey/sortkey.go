// Package sortkey derives comparable keys from file and directory names so
// siblings sort deterministically, independent of listing order.
//
// A key is built from the name in four steps:
//   - lower-case it unless Case is set
//   - decompose accented characters (NFD) unless Accents is set, so "ú" sorts
//     next to "u"
//   - rewrite a trailing "<IndexFile>" or "<IndexFile>.ext" segment to a NUL
//     followed by the extension, which puts the index file first in its own
//     directory
//   - prefix every path segment with a type tag and join segments with NUL,
//     so a directory's subtree sorts as one block
//
// Names passed to Path are expected to be NFC-normalized already.
package sortkey

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultIndexFile is the stem of the file sorted first in each directory.
const DefaultIndexFile = "index"

// Options tunes the ordering. The zero value is case and accent insensitive,
// files first, with no index file; use DefaultOptions for the usual index file.
type Options struct {
	Case      bool   `yaml:"case" json:"case"`
	Accents   bool   `yaml:"accents" json:"accents"`
	DirsFirst bool   `yaml:"dirs_first" json:"dirsFirst"`
	DirsSame  bool   `yaml:"dirs_same" json:"dirsSame"`
	IndexFile string `yaml:"index_file" json:"indexFile"`
}

// DefaultOptions returns files-first, case and accent insensitive ordering
// with "index" as the index file.
func DefaultOptions() Options {
	return Options{IndexFile: DefaultIndexFile}
}

// Sorter computes sort keys for a fixed set of options. It is safe for
// concurrent use.
type Sorter struct {
	opts    Options
	indexRe *regexp.Regexp
	fileTag string
	dirTag  string
}

// New returns a Sorter for opts.
func New(opts Options) *Sorter {
	s := &Sorter{opts: opts, fileTag: "1", dirTag: "2"}
	switch {
	case opts.DirsSame:
		s.dirTag = "1"
	case opts.DirsFirst:
		s.fileTag, s.dirTag = "2", "1"
	}
	if opts.IndexFile != "" {
		stem := opts.IndexFile
		if !opts.Case {
			stem = strings.ToLower(stem)
		}
		if !opts.Accents {
			stem = norm.NFD.String(stem)
		}
		s.indexRe = regexp.MustCompile(`(^|/)` + regexp.QuoteMeta(stem) + `(\.[^./]*$|$)`)
	}
	return s
}

// Options returns the options the Sorter was built with.
func (s *Sorter) Options() Options { return s.opts }

// Key returns the sort key of a single directory entry.
func (s *Sorter) Key(name string, isDir bool) string {
	if isDir {
		name += "/"
	}
	return s.Path(name)
}

// Path returns the sort key of a slash separated path. A trailing slash marks
// a directory. Sorting full paths by Path gives the same order as a
// depth-first crawl.
func (s *Sorter) Path(name string) string {
	if !s.opts.Case {
		name = strings.ToLower(name)
	}
	if !s.opts.Accents {
		name = norm.NFD.String(name)
	}
	if s.indexRe != nil {
		name = s.indexRe.ReplaceAllString(name, "${1}\x00${2}")
	}

	parts := strings.Split(name, "/")
	last := len(parts) - 1
	for i, part := range parts {
		if i == last {
			parts[i] = s.fileTag + part
		} else {
			parts[i] = s.dirTag + part
		}
	}
	return strings.Join(parts, "\x00")
}

// Less reports whether path a sorts before path b.
func (s *Sorter) Less(a, b string) bool {
	return s.Path(a) < s.Path(b)
}
