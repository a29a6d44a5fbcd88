package cmd

import (
	"errors"
	"fmt"

	"github.com/marcus/geoedit/internal/output"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "Show recent clone, pull and publish operations",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.store == nil {
			return errors.New("history database unavailable")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := a.store.Tail(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(entries)
		}
		if len(entries) == 0 {
			output.Info("No history yet")
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			changes := ""
			if e.Adds+e.Deletes+e.Edits > 0 {
				changes = fmt.Sprintf("+%d -%d ~%d", e.Adds, e.Deletes, e.Edits)
			}
			target := e.Source
			if target == "" {
				target = e.Path
			}
			rows = append(rows, []string{
				output.FormatTimeAgo(e.Timestamp),
				e.Op,
				target,
				output.FormatResult(e.Result),
				changes,
				output.SingleLine(e.Message),
			})
		}
		fmt.Fprintln(output.Stdout, output.RenderTable(
			[]string{"when", "op", "target", "result", "changes", "message"}, rows, output.TerminalWidth(0)))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}
