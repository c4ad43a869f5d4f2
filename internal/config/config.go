// Package config manages the YAML configuration of named file sources.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/CageChen/filesource/internal/atomicfile"
	"github.com/CageChen/filesource/internal/binext"
	mfs "github.com/CageChen/filesource/internal/fs"
	"github.com/CageChen/filesource/internal/source"
	"github.com/CageChen/filesource/internal/sortkey"
	"github.com/CageChen/filesource/internal/walker"
	"gopkg.in/yaml.v3"
)

// Source is the configuration of one named source.
type Source struct {
	Name             string   `yaml:"name" json:"name"`
	Path             string   `yaml:"path" json:"path"`
	Glob             Glob     `yaml:"glob,omitempty" json:"glob"`
	Depth            int      `yaml:"depth,omitempty" json:"depth,omitempty"`
	Exclude          []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	IncludeBinaries  bool     `yaml:"include_binaries,omitempty" json:"include_binaries,omitempty"`
	BinaryExtensions []string `yaml:"binary_extensions,omitempty" json:"binary_extensions,omitempty"`
	Concurrency      int      `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	Timeout          Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Writable         bool     `yaml:"writable,omitempty" json:"writable"`
	WriteOnly        bool     `yaml:"write_only,omitempty" json:"write_only,omitempty"`
	Tmp              string   `yaml:"tmp,omitempty" json:"-"`
	LockFile         string   `yaml:"lock_file,omitempty" json:"-"`

	// Alternative providers. A git_ref reads Path as a repository, a
	// dropbox_token reads Path as a Dropbox folder.
	GitRef       string `yaml:"git_ref,omitempty" json:"git_ref,omitempty"`
	SubPath      string `yaml:"sub_path,omitempty" json:"sub_path,omitempty"`
	DropboxToken string `yaml:"dropbox_token,omitempty" json:"-"`

	Sort *Sort `yaml:"sort,omitempty" json:"sort,omitempty"`
}

// Sort mirrors sortkey.Options. A missing index_file keeps the default stem;
// an empty one disables index ordering.
type Sort struct {
	Case      bool    `yaml:"case,omitempty" json:"case"`
	Accents   bool    `yaml:"accents,omitempty" json:"accents"`
	DirsFirst bool    `yaml:"dirs_first,omitempty" json:"dirs_first"`
	DirsSame  bool    `yaml:"dirs_same,omitempty" json:"dirs_same"`
	IndexFile *string `yaml:"index_file,omitempty" json:"index_file,omitempty"`
}

// Config holds all configuration options for filesource
type Config struct {
	// Legacy single path, turned into a one-source config
	Path string `yaml:"path,omitempty"`

	Sources  []Source `yaml:"sources,omitempty"`
	Port     int      `yaml:"port"`
	Watch    bool     `yaml:"watch"`
	LogLevel string   `yaml:"log_level"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Path:     ".",
		Port:     8080,
		Watch:    true,
		LogLevel: "info",
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/filesource"
	}
	return filepath.Join(home, ".config", "filesource")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load reads configuration from configFile, or when it is empty from
// ~/.config/filesource/config.yaml, falling back to ./filesource.yaml.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	var cfgPath string
	if configFile != "" {
		cfgPath = configFile
	} else {
		globalConfig := GetConfigPath()
		if _, err := os.Stat(globalConfig); err == nil {
			cfgPath = globalConfig
		} else if _, err := os.Stat("filesource.yaml"); err == nil {
			cfgPath = "filesource.yaml"
		}
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil && configFile != "" {
			// Only fail if the file was asked for explicitly
			return nil, err
		}
		cfg.configPath = cfgPath
	} else {
		cfg.configPath = GetConfigPath()
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UsePath replaces the configured sources with a single source at p.
func (c *Config) UsePath(p string) error {
	c.Path = p
	c.Sources = nil
	return c.resolve()
}

func (c *Config) resolve() error {
	c.migrateLegacyPath()

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.DropboxToken == "" {
			s.Path = absPath(s.Path)
		}
		if s.Name == "" {
			s.Name = path.Base(filepath.ToSlash(s.Path))
		}
		if s.Tmp != "" {
			s.Tmp = absPath(s.Tmp)
		}
		if s.LockFile != "" {
			s.LockFile = absPath(s.LockFile)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// migrateLegacyPath converts a single Path to Sources if Sources is empty
func (c *Config) migrateLegacyPath() {
	if len(c.Sources) == 0 && c.Path != "" {
		p := absPath(c.Path)
		c.Sources = []Source{{Name: filepath.Base(p), Path: p}}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save writes the configuration back to the file it was loaded from, or to
// the default location.
func (c *Config) Save() error {
	saveConfig := *c
	saveConfig.Path = ""

	data, err := yaml.Marshal(&saveConfig)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.configPath)
	return atomicfile.NewOS(dir, dir).WriteFile(filepath.Base(c.configPath), data)
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// Lookup returns the source configuration with the given name.
func (c *Config) Lookup(name string) (*Source, bool) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// AddSource appends s, rejecting a name that is already taken.
func (c *Config) AddSource(s Source) error {
	if s.DropboxToken == "" {
		s.Path = absPath(s.Path)
	}
	if s.Name == "" {
		s.Name = filepath.Base(s.Path)
	}
	if _, ok := c.Lookup(s.Name); ok {
		return fmt.Errorf("duplicate source name %q", s.Name)
	}
	c.Sources = append(c.Sources, s)
	return nil
}

// Options converts the configuration into source options, choosing the
// provider and combining exclude patterns with the default exclusion.
func (s Source) Options() (source.Options, error) {
	opts := source.Options{
		Name:             s.Name,
		Path:             s.Path,
		Glob:             s.Glob.Options,
		Depth:            s.Depth,
		IncludeBinaries:  s.IncludeBinaries,
		BinaryExtensions: s.BinaryExtensions,
		Concurrency:      s.Concurrency,
		Timeout:          s.Timeout.Std(),
		Writable:         s.Writable,
		WriteOnly:        s.WriteOnly,
		Tmp:              s.Tmp,
		LockFile:         s.LockFile,
	}

	switch {
	case s.GitRef != "" && s.DropboxToken != "":
		return opts, &source.ConfigError{Field: "dropbox_token", Reason: "cannot be combined with git_ref"}
	case s.GitRef != "":
		opts.FS = mfs.NewGitFS(s.Path, s.GitRef, s.SubPath)
	case s.DropboxToken != "":
		opts.FS = mfs.NewDropboxFS(s.DropboxToken, s.Path)
	}

	if len(s.Exclude) > 0 {
		for _, pattern := range s.Exclude {
			if _, err := path.Match(pattern, ""); err != nil {
				return opts, &source.ConfigError{Field: "exclude", Reason: fmt.Sprintf("%q: %v", pattern, err)}
			}
		}
		var isBinary func(string) bool
		if !s.IncludeBinaries {
			isBinary = binext.New(s.BinaryExtensions).IsBinary
		}
		opts.Exclude = excludeNames(walker.DefaultExclude(isBinary), s.Exclude)
	}

	if s.Sort != nil {
		sortOpts := sortkey.Options{
			Case:      s.Sort.Case,
			Accents:   s.Sort.Accents,
			DirsFirst: s.Sort.DirsFirst,
			DirsSame:  s.Sort.DirsSame,
			IndexFile: sortkey.DefaultIndexFile,
		}
		if s.Sort.IndexFile != nil {
			sortOpts.IndexFile = *s.Sort.IndexFile
		}
		opts.Sort = &sortOpts
	}
	return opts, nil
}

// Open builds the source.
func (s Source) Open() (*source.Source, error) {
	opts, err := s.Options()
	if err != nil {
		return nil, err
	}
	return source.New(opts)
}

func excludeNames(base walker.ExcludeFunc, patterns []string) walker.ExcludeFunc {
	return func(entry mfs.DirEntry) bool {
		if base(entry) {
			return true
		}
		for _, pattern := range patterns {
			if matched, _ := path.Match(pattern, entry.Name); matched {
				return true
			}
		}
		return false
	}
}
