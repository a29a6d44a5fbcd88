package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/input"
	"github.com/marcus/geoedit/internal/output"
	"github.com/marcus/geoedit/internal/session"
	"github.com/marcus/geoedit/internal/suggest"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <source> <row> <column> <value>",
	Short: "Change one cell, optionally publishing it",
	Long: `Change one cell of a data source. Rows are numbered as in 'geoedit show'.

The value may be given as - to read stdin or @file to read a file; use @@
for a value starting with @.

Without --publish nothing is written: the new value is shown and discarded.
With --publish the file is written, committed and pushed.`,
	GroupID: "edit",
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, rowArg, column := args[0], args[1], args[2]
		value, err := input.Value(args[3], cmd.InOrStdin())
		if err != nil {
			return err
		}

		row, err := strconv.Atoi(rowArg)
		if err != nil {
			return fmt.Errorf("invalid row %q", rowArg)
		}

		a, err := openConfigured(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectSource(ctx, source); err != nil {
			return err
		}
		if columns := a.ctrl.Columns(); !slices.Contains(columns, column) {
			if hint := suggest.Hint(column, columns); hint != "" {
				return fmt.Errorf("unknown column %q%s", column, hint)
			}
			return fmt.Errorf("unknown column %q (columns: %s)", column, strings.Join(columns, ", "))
		}

		before, err := a.ctrl.CellText(row, column)
		if err != nil {
			return err
		}
		change, err := a.ctrl.SetCell(row, column, value)
		if err != nil {
			return err
		}
		after, _ := a.ctrl.CellText(row, column)

		if change.Coerced {
			output.Warning("%q is not a valid %s; stored %q", value, a.ctrl.ColumnType(column), after)
		}
		output.Info("%s[%d].%s: %q → %q", source, row, column, before, after)

		if publish, _ := cmd.Flags().GetBool("publish"); !publish {
			output.Info("not published (use --publish to commit and push)")
			return nil
		}

		r, err := a.ctrl.Publish(ctx)
		if err != nil {
			return err
		}
		return reportPublish(r)
	},
}

func reportPublish(r session.Result) error {
	if r.Status != session.StatusSucceeded {
		if r.Outcome == gitsync.OutcomeCommitted {
			output.Warning("committed locally but the push failed; run 'geoedit push' to retry")
		}
		return r.Err
	}
	if r.Outcome == gitsync.OutcomeNoChanges {
		output.Info("%s", r.Message)
		return nil
	}
	output.Success("%s", r.Message)
	return nil
}

func init() {
	setCmd.Flags().Bool("publish", false, "write, commit and push the change")
	rootCmd.AddCommand(setCmd)
}
