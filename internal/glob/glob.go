// Package glob matches root-relative slash paths against a glob pattern with
// "**" support.
package glob

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches every file at any depth.
const DefaultPattern = "**/*"

// Options holds a pattern and its match options.
type Options struct {
	Pattern   string `yaml:"pattern" json:"pattern"`
	NoCase    bool   `yaml:"nocase" json:"nocase"`
	MatchBase bool   `yaml:"matchbase" json:"matchbase"`
}

// Matcher is a validated pattern.
type Matcher struct {
	opts    Options
	pattern string
}

// Compile validates opts.Pattern. An empty pattern compiles to DefaultPattern.
func Compile(opts Options) (*Matcher, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	pattern = strings.TrimPrefix(pattern, "/")
	if opts.NoCase {
		pattern = strings.ToLower(pattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", opts.Pattern)
	}
	opts.Pattern = pattern
	return &Matcher{opts: opts, pattern: pattern}, nil
}

// Pattern returns the compiled pattern.
func (m *Matcher) Pattern() string { return m.pattern }

// Match reports whether the relative path (no leading slash) matches.
func (m *Matcher) Match(rel string) bool {
	if m.opts.NoCase {
		rel = strings.ToLower(rel)
	}
	if m.opts.MatchBase && !strings.Contains(m.pattern, "/") {
		rel = path.Base(rel)
	}
	return doublestar.MatchUnvalidated(m.pattern, rel)
}

// Unbounded reports whether the pattern has a "**" segment.
func (m *Matcher) Unbounded() bool {
	for _, seg := range strings.Split(m.pattern, "/") {
		if seg == "**" {
			return true
		}
	}
	return false
}

// Depth returns the default crawl depth implied by the pattern: 5 for
// patterns with a "**" segment, otherwise the number of path segments.
func (m *Matcher) Depth() int {
	if m.Unbounded() {
		return 5
	}
	return len(strings.Split(m.pattern, "/"))
}
