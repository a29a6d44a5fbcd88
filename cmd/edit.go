package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/geoedit/internal/output"
	"github.com/marcus/geoedit/internal/suggest"
	"github.com/marcus/geoedit/internal/tui/editor"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [source]",
	Short: "Open the interactive table editor",
	Long: `Open the interactive table editor, optionally on a data source.

Key bindings:
  ↑/↓ or j/k     Move between sources or rows
  ←/→ or h/l     Move between columns
  Enter / e      Open a source, edit the selected cell
  a / d          Add a row, delete the selected row
  r              Revert unsaved changes
  p              Publish (write, commit and push)
  c / x          Clone the repository, cancel the clone
  t              Test the connection
  Esc            Back to the source list
  ?              Toggle help
  q              Quit

Logs go to ~/.config/geoedit/geoedit.log unless --log-file is given.`,
	GroupID:     "edit",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationLogToFile: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var source string
		if len(args) == 1 {
			source = args[0]
			if _, ok := a.cfg.Source(source); !ok {
				var names []string
				for _, ds := range a.cfg.DataSources {
					names = append(names, ds.Name)
				}
				return fmt.Errorf("unknown data source %q%s", source, suggest.Hint(source, names))
			}
		}

		model := editor.NewModel(cmd.Context(), a.ctrl, source)
		p := tea.NewProgram(model, tea.WithAltScreen())
		_, err = p.Run()
		model.Close()
		if err != nil {
			return fmt.Errorf("error running editor: %w", err)
		}

		// A clone cancelled on quit still has to finish its transfer.
		if a.ctrl.Busy() {
			output.Info("waiting for the running operation to finish...")
			for a.ctrl.Busy() {
				time.Sleep(100 * time.Millisecond)
			}
		}

		if a.ctrl.HasChanges() {
			c := a.ctrl.Counts()
			output.Warning("quit with unpublished changes (+%d -%d ~%d) discarded", c.Adds, c.Deletes, c.Edits)
		}
		if a.ctrl.PendingPush() {
			output.Warning("a commit is waiting to be pushed; run 'geoedit push'")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
