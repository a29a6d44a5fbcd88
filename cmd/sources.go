package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcus/geoedit/internal/output"
	"github.com/marcus/geoedit/internal/session"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Short:   "List the configured data sources",
	GroupID: "edit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.DataSources) == 0 {
			output.Info("No data sources configured. Run 'geoedit config init'.")
			return nil
		}

		rows := make([][]string, 0, len(cfg.DataSources))
		for _, ds := range cfg.DataSources {
			present := "missing"
			if _, err := os.Stat(cfg.FilePath(ds)); err == nil {
				present = "present"
			}
			columns := strings.Join(ds.Columns, ", ")
			if columns == "" {
				columns = "(all)"
			}
			rows = append(rows, []string{ds.Name, ds.Path, columns, present})
		}
		fmt.Fprintln(output.Stdout, output.RenderTable(
			[]string{"name", "path", "columns", "file"}, rows, output.TerminalWidth(0)))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <source>",
	Short:   "Print a data source as a table",
	GroupID: "edit",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openConfigured(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectSource(cmd.Context(), args[0]); err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(sourceRecords(a.ctrl))
		}

		columns := a.ctrl.Columns()
		rows := make([][]string, a.ctrl.RowCount())
		for r := range rows {
			rows[r] = make([]string, len(columns))
			for c, col := range columns {
				text, err := a.ctrl.CellText(r, col)
				if err != nil {
					text = "∅"
				}
				rows[r][c] = text
			}
		}
		fmt.Fprintln(output.Stdout, output.RenderTable(columns, rows, output.TerminalWidth(0)))
		return nil
	},
}

// sourceRecords returns the visible cells of every row keyed by column.
func sourceRecords(ctrl *session.Controller) []map[string]any {
	columns := ctrl.Columns()
	records := make([]map[string]any, ctrl.RowCount())
	for r := range records {
		rec := make(map[string]any, len(columns))
		for _, col := range columns {
			v, _ := ctrl.CellValue(r, col)
			rec[col] = v
		}
		records[r] = rec
	}
	return records
}

func init() {
	showCmd.Flags().Bool("json", false, "output rows as JSON")
	rootCmd.AddCommand(sourcesCmd, showCmd)
}
