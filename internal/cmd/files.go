package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/CageChen/filesource/internal/source"
	"github.com/spf13/cobra"
)

// newLsCommand creates the 'filesource ls' command
func newLsCommand(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ls [source]",
		Short: "List the files of a source in crawl order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := flags.open(sourceArg(args))
			if err != nil {
				return err
			}
			list, err := src.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			for _, d := range list {
				fmt.Fprintln(out, d.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print descriptors as JSON")
	return cmd
}

// newGetCommand creates the 'filesource get' command
func newGetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get [source]",
		Short: "Print every file of a source as a JSON array",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := flags.open(sourceArg(args))
			if err != nil {
				return err
			}
			files, err := src.Get(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(files)
		},
	}
}

// newPutCommand creates the 'filesource put' command
func newPutCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "put [source]",
		Short: "Write a JSON array of files read from stdin to a source",
		Long: `Write files to a writable source. Input is a JSON array of
{"path": "/a.md", "text": "..."} or {"path": "/b.png", "buffer": "<base64>"}
objects, the same shape 'filesource get' prints.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := flags.open(sourceArg(args))
			if err != nil {
				return err
			}
			var files []source.File
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&files); err != nil {
				return fmt.Errorf("decode files: %w", err)
			}
			written, err := src.Put(cmd.Context(), files)
			for _, p := range written {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return err
		},
	}
}

// newCopyCommand creates the 'filesource copy' command
func newCopyCommand(flags *globalFlags) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "copy <from> <to>",
		Short: "Read every file of one source and write them to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			from, err := openSource(cfg, args[0])
			if err != nil {
				return err
			}
			to, err := openSource(cfg, args[1])
			if err != nil {
				return err
			}

			files, err := from.Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("read %s: %w", from.Name(), err)
			}
			written, err := to.Put(cmd.Context(), files)
			if err != nil {
				return fmt.Errorf("write %s: %w", to.Name(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %d file(s) from %s to %s\n", len(written), from.Name(), to.Name())

			if !verify {
				return nil
			}
			back, err := to.Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("read back %s: %w", to.Name(), err)
			}
			if !sameContent(back, files) {
				return fmt.Errorf("read back %s: got %d file(s), differing from the %d written", to.Name(), len(back), len(files))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "verified")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Read the destination back and compare")
	return cmd
}

// sameContent compares paths and contents. Shas are provider specific and
// are not carried across a write.
func sameContent(a, b []source.File) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path ||
			a[i].Text != b[i].Text ||
			a[i].IsBinary() != b[i].IsBinary() ||
			!bytes.Equal(a[i].Buffer, b[i].Buffer) {
			return false
		}
	}
	return true
}
