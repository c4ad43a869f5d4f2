package source

import (
	"fmt"
	"time"

	mfs "github.com/CageChen/filesource/internal/fs"
	"github.com/CageChen/filesource/internal/glob"
	"github.com/CageChen/filesource/internal/sortkey"
	"github.com/CageChen/filesource/internal/walker"
)

// Options configures a Source.
type Options struct {
	// Name identifies the source in logs and in the HTTP API.
	Name string
	// Path is the root directory, or a single file, of the source. Required.
	Path string
	// FS overrides the provider. Defaults to the local filesystem at Path.
	FS mfs.FileSystem

	Glob glob.Options
	// Depth bounds recursion. Zero derives it from the glob pattern.
	Depth int
	// Exclude replaces the default exclusion of dot files, node_modules and
	// binary files.
	Exclude          walker.ExcludeFunc
	IncludeBinaries  bool
	BinaryExtensions []string

	Concurrency int
	Timeout     time.Duration

	Writable  bool
	WriteOnly bool
	// Tmp is the staging directory for writes. Required when Writable.
	Tmp string
	// LockFile, when set on a writable source, serializes operations across
	// processes sharing the file.
	LockFile string

	// Sort nil selects sortkey.DefaultOptions.
	Sort *sortkey.Options
}

// ConfigError reports invalid Options.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid source option %s: %s", e.Field, e.Reason)
}
