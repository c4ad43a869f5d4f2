package config

import (
	"fmt"
	"time"

	"github.com/CageChen/filesource/internal/glob"
	"gopkg.in/yaml.v3"
)

// Glob is a glob pattern written either as a plain string or as a mapping
// with pattern, nocase and matchbase keys.
type Glob struct {
	glob.Options
}

// UnmarshalYAML accepts a scalar pattern or a mapping.
func (g *Glob) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		g.Options = glob.Options{Pattern: value.Value}
		return nil
	}
	var opts glob.Options
	if err := value.Decode(&opts); err != nil {
		return err
	}
	g.Options = opts
	return nil
}

// MarshalYAML writes the short scalar form when no match options are set.
func (g Glob) MarshalYAML() (interface{}, error) {
	if !g.NoCase && !g.MatchBase {
		return g.Pattern, nil
	}
	return g.Options, nil
}

// IsZero lets omitempty drop an unset glob.
func (g Glob) IsZero() bool {
	return g.Options == glob.Options{}
}

// Duration is a time.Duration written as "5s", or as a bare number of
// milliseconds.
type Duration time.Duration

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML parses a duration string or integer milliseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timeout must be a duration", value.Line)
	}
	var ms int64
	if err := value.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// MarshalText writes the duration string form for JSON.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
