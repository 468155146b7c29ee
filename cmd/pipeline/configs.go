package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-data-pipeline/internal/store"
)

func newConfigsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configs",
		Short: "Manage stored pipeline definitions",
	}
	cmd.AddCommand(newConfigsListCmd(opts), newConfigsExportCmd(opts), newConfigsImportCmd(opts))
	return cmd
}

func openStore(opts *options) (*store.FileStore, error) {
	cfg, _, err := opts.load()
	if err != nil {
		return nil, err
	}
	return store.NewFileStore(cfg.Store.Dir)
}

func newConfigsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored pipeline definitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defs, err := st.AllConfigs()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENABLED\tSCHEDULE\tSOURCE\tDESTINATION")
			for _, d := range defs {
				schedule := d.Schedule
				if schedule == "" {
					schedule = "-"
				}
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n", d.Name, d.Enabled, schedule, d.Source.Type, d.Destination.Type)
			}
			return w.Flush()
		},
	}
}

func newConfigsExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export every definition as a JSON document (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return st.Export(w)
		},
	}
}

func newConfigsImportCmd(opts *options) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import definitions from an export document (JSON or YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := st.Import(f, filepath.Ext(args[0]), overwrite)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d definition(s) failed to import", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace definitions that already exist")
	return cmd
}
