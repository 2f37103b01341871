package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bridgetrack/bridgetrack/internal/core"
	"github.com/bridgetrack/bridgetrack/internal/sheet"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts core.ImportOptions
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Merge a CSV or XLSX spreadsheet into the store",
		Long: `Merge a CSV or XLSX spreadsheet into the store.

Rows are matched by BIN. Existing bridges keep any field the row leaves
blank; new BINs are created. With --clear every bridge is deleted first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			src, err := sheet.Open(path, f)
			if err != nil {
				return err
			}
			defer src.Close()

			svc, store, err := root.openService(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			opts.Source = filepath.Base(path)
			res, err := svc.Import(ctx, src.Rows(), opts)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(res); encErr != nil {
					return encErr
				}
			} else {
				printResult(cmd, res)
			}
			if err != nil {
				return fmt.Errorf("import %s: %s", path, core.FormatUserError(err))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.ClearExisting, "clear", false, "delete every bridge before importing")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, res core.ImportResult) {
	out := cmd.OutOrStdout()
	prefix := ""
	if res.DryRun {
		prefix = "(dry run) "
	}
	if res.Cleared > 0 {
		fmt.Fprintf(out, "%scleared %d bridges\n", prefix, res.Cleared)
	}
	fmt.Fprintf(out, "%s%d rows: %d imported, %d updated, %d skipped in %dms\n",
		prefix, res.Rows, res.Imported, res.Updated, res.Errors, res.DurationMs)
}
