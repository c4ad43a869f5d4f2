package cmd

import (
	"fmt"

	"github.com/CageChen/filesource/internal/config"
	"github.com/CageChen/filesource/internal/source"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

type globalFlags struct {
	configFile string
	logLevel   string
	path       string
}

// NewRootCommand creates and returns the root cobra command for filesource
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "filesource",
		Short: "Read and write directory trees as ordered batches of files",
		Long: `filesource exposes directory trees as named sources. A source is crawled
depth-first in a stable order (index files first, files before directories),
read as a batch of text and binary files, and written back atomically.

Sources are configured in ~/.config/filesource/config.yaml or ./filesource.yaml,
or given ad hoc with --path.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logLevel == "" {
				return nil
			}
			level, err := log.ParseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&flags.path, "path", "p", "", "Use a single source rooted at this path instead of the configured sources")

	cmd.AddCommand(newServeCommand(flags))
	cmd.AddCommand(newLsCommand(flags))
	cmd.AddCommand(newGetCommand(flags))
	cmd.AddCommand(newPutCommand(flags))
	cmd.AddCommand(newCopyCommand(flags))

	return cmd
}

func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	if f.path != "" {
		if err := cfg.UsePath(f.path); err != nil {
			return nil, err
		}
	}
	if f.logLevel == "" && cfg.LogLevel != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		log.SetLevel(level)
	}
	return cfg, nil
}

// open returns the named source. An empty name selects the only configured
// source.
func (f *globalFlags) open(name string) (*source.Source, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	return openSource(cfg, name)
}

func openSource(cfg *config.Config, name string) (*source.Source, error) {
	if name == "" {
		if len(cfg.Sources) != 1 {
			return nil, fmt.Errorf("%d sources configured, name one of them", len(cfg.Sources))
		}
		return cfg.Sources[0].Open()
	}
	sc, ok := cfg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return sc.Open()
}

func sourceArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
