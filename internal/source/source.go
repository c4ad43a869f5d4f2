// Package source exposes a directory tree, or a single file, as an ordered
// batch of text and binary files that can be read whole and written back.
package source

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/CageChen/filesource/internal/atomicfile"
	"github.com/CageChen/filesource/internal/binext"
	mfs "github.com/CageChen/filesource/internal/fs"
	"github.com/CageChen/filesource/internal/glob"
	"github.com/CageChen/filesource/internal/queue"
	"github.com/CageChen/filesource/internal/sortkey"
	"github.com/CageChen/filesource/internal/walker"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
)

// ErrNotWritable is returned by Put on a source that was not opened writable.
var ErrNotWritable = errors.New("cannot write to non-writable source")

// File is one file of a source. Buffer is set for binary files, Text for
// everything else.
type File struct {
	Path   string `json:"path"`
	Text   string `json:"text,omitempty"`
	Buffer []byte `json:"buffer,omitempty"`
	Sha    string `json:"sha,omitempty"`
}

// IsBinary reports whether the content is carried in Buffer.
func (f File) IsBinary() bool { return f.Buffer != nil }

func (f File) data() []byte {
	if f.Buffer != nil {
		return f.Buffer
	}
	return []byte(f.Text)
}

// Source is a configured file source. It is safe for concurrent use; Get and
// Put on a writable source never overlap.
type Source struct {
	name string
	root string
	fs   mfs.FileSystem
	// file is the raw base name in single-file mode
	file string

	walker  *walker.Walker
	exclude walker.ExcludeFunc
	binary  *binext.Set
	writer  *atomicfile.Writer
	gate    *queue.Gate
	run     queue.Options

	writable  bool
	writeOnly bool
	watchable bool
}

// New validates opts and returns a Source. No listing happens until the
// first List or Get. A Path naming a regular file on the local filesystem
// puts the source in single-file mode, rooted at the file's directory.
func New(opts Options) (*Source, error) {
	if opts.Path == "" {
		return nil, &ConfigError{Field: "path", Reason: "required"}
	}
	if opts.Writable && opts.Tmp == "" {
		return nil, &ConfigError{Field: "tmp", Reason: "required for a writable source"}
	}
	if opts.Depth < 0 {
		return nil, &ConfigError{Field: "depth", Reason: "must not be negative"}
	}
	if opts.Concurrency < 0 {
		return nil, &ConfigError{Field: "concurrency", Reason: "must not be negative"}
	}
	if opts.Timeout < 0 {
		return nil, &ConfigError{Field: "timeout", Reason: "must not be negative"}
	}
	matcher, err := glob.Compile(opts.Glob)
	if err != nil {
		return nil, &ConfigError{Field: "glob", Reason: err.Error()}
	}
	sortOpts := sortkey.DefaultOptions()
	if opts.Sort != nil {
		sortOpts = *opts.Sort
	}

	s := &Source{
		name:      opts.Name,
		root:      opts.Path,
		fs:        opts.FS,
		binary:    binext.New(opts.BinaryExtensions),
		writable:  opts.Writable,
		writeOnly: opts.WriteOnly,
		run:       queue.Options{Concurrency: opts.Concurrency, Timeout: opts.Timeout},
	}

	local, isLocal := opts.FS.(*mfs.LocalFS)
	if opts.FS == nil {
		local, isLocal = mfs.NewLocalFS(opts.Path), true
	}
	if isLocal {
		root := local.Root()
		if info, err := local.Afero().Stat(root); err == nil && info.Mode().IsRegular() {
			s.file = filepath.Base(root)
			local = mfs.NewLocalFSWith(local.Afero(), filepath.Dir(root))
		}
		s.fs = local
		s.root = local.Root()
		s.watchable = true
	}

	s.exclude = opts.Exclude
	if s.exclude == nil {
		var isBinary func(string) bool
		if !opts.IncludeBinaries {
			isBinary = s.binary.IsBinary
		}
		s.exclude = walker.DefaultExclude(isBinary)
	}

	depth := opts.Depth
	if depth == 0 {
		depth = matcher.Depth()
	}
	s.walker = walker.New(walker.Config{
		FS:       s.fs,
		Sorter:   sortkey.New(sortOpts),
		Exclude:  s.exclude,
		Match:    matcher.Match,
		MaxDepth: depth,
	})

	capacity := opts.Concurrency
	if capacity == 0 {
		capacity = queue.DefaultConcurrency
	}
	lockFile := ""
	if opts.Writable {
		capacity = 1
		lockFile = opts.LockFile
		fsys := afero.NewOsFs()
		if isLocal {
			fsys = local.Afero()
		}
		s.writer = atomicfile.New(fsys, s.root, opts.Tmp)
	}
	s.gate = queue.NewGate(capacity, lockFile)
	return s, nil
}

// Name returns the configured name.
func (s *Source) Name() string { return s.name }

// Root returns the directory the source is rooted at.
func (s *Source) Root() string { return s.root }

// Writable reports whether Put is allowed.
func (s *Source) Writable() bool { return s.writable }

// Watchable reports whether the source lives on the local filesystem and can
// be watched for changes.
func (s *Source) Watchable() bool { return s.watchable }

// Excluded reports whether a listing entry would be skipped by a crawl. In
// single-file mode every entry but the file itself is excluded.
func (s *Source) Excluded(entry mfs.DirEntry) bool {
	if s.file != "" {
		return entry.Name != s.file
	}
	return s.exclude(entry)
}

// List returns the descriptors of every matching file in crawl order.
func (s *Source) List(ctx context.Context) ([]walker.Descriptor, error) {
	var list []walker.Descriptor
	err := s.gate.Enter(ctx, func() (err error) {
		list, err = s.list(ctx)
		return err
	})
	return list, err
}

func (s *Source) list(ctx context.Context) ([]walker.Descriptor, error) {
	if s.file != "" {
		return []walker.Descriptor{{
			Path:    "/" + norm.NFC.String(s.file),
			RawPath: "/" + s.file,
		}}, nil
	}
	return s.walker.Walk(ctx)
}

// Get reads every matching file in crawl order. On failure it returns the
// first error together with the files that were read.
func (s *Source) Get(ctx context.Context) ([]File, error) {
	if s.writeOnly {
		return []File{}, nil
	}

	var files []File
	err := s.gate.Enter(ctx, func() error {
		list, err := s.list(ctx)
		if err != nil {
			return err
		}
		results, err := queue.Run(ctx, len(list), s.run, func(_ context.Context, i int) (File, error) {
			return s.read(list[i])
		})
		files = make([]File, 0, len(results))
		for _, r := range results {
			if r.Done {
				files = append(files, r.Value)
			}
		}
		return err
	})

	entry := log.WithFields(log.Fields{"source": s.name, "files": len(files)})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("get")
	return files, err
}

func (s *Source) read(d walker.Descriptor) (File, error) {
	var (
		data []byte
		err  error
	)
	if sr, ok := s.fs.(mfs.ShaReader); ok && d.Sha != "" {
		data, err = sr.ReadFileBySha(d.Sha)
	} else {
		data, err = s.fs.ReadFile(strings.TrimPrefix(d.RawPath, "/"))
	}
	if err != nil {
		return File{}, err
	}

	f := File{Path: d.Path, Sha: d.Sha}
	if s.binary.IsBinary(d.Path) {
		if data == nil {
			data = []byte{}
		}
		f.Buffer = data
	} else {
		f.Text = strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return f, nil
}

// Put writes files atomically, each replacing any existing file at its path.
// It returns the paths written, in input order, and the first error. A
// source that is not writable fails with ErrNotWritable before touching the
// filesystem.
// A write that times out is abandoned before its rename, so a path reported
// as failed is never replaced later.
func (s *Source) Put(ctx context.Context, files []File) ([]string, error) {
	if !s.writable {
		return nil, ErrNotWritable
	}

	var written []string
	err := s.gate.Enter(ctx, func() error {
		results, err := queue.Run(ctx, len(files), s.run, func(uctx context.Context, i int) (string, error) {
			return files[i].Path, s.writer.WriteFileContext(uctx, files[i].Path, files[i].data())
		})
		written = make([]string, 0, len(results))
		for _, r := range results {
			if r.Done {
				written = append(written, r.Value)
			}
		}
		return err
	})

	entry := log.WithFields(log.Fields{"source": s.name, "files": len(files)})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("put")
	return written, err
}
