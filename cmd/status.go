package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/marcus/geoedit/internal/config"
	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/output"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the working copy state and test the connection",
	Long: `Show the configured remote, the working copy state and which data
source files are present. Unless --offline is given, the remote is contacted
to check the credentials.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		offline, _ := cmd.Flags().GetBool("offline")
		report, err := buildStatusReport(cmd, a, offline)
		if err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(report)
		}
		rendered, err := output.RenderMarkdown(report.Markdown())
		if err != nil {
			return err
		}
		fmt.Fprintln(output.Stdout, rendered)
		return nil
	},
}

func buildStatusReport(cmd *cobra.Command, a *app, offline bool) (output.StatusReport, error) {
	cfg := a.cfg
	report := output.StatusReport{
		Remote:    gitsync.RedactURL(cfg.RemoteURL),
		LocalPath: cfg.WorkingCopy(),
	}

	var verr *config.ValidationError
	if err := cfg.Validate(); errors.As(err, &verr) {
		report.Problems = verr.Problems
	}

	h, err := a.ctrl.Refresh(cmd.Context())
	if err != nil {
		return report, err
	}
	report.State = h.State().String()
	if h.Cloned() {
		if info, err := a.syncer.Describe(cmd.Context(), h); err == nil {
			report.Repo = info
		} else {
			slog.Debug("describe working copy", "err", err)
		}
	}

	for _, ds := range cfg.DataSources {
		_, statErr := os.Stat(cfg.FilePath(ds))
		report.Sources = append(report.Sources, output.SourceStatus{
			Name:   ds.Name,
			Path:   ds.Path,
			Exists: statErr == nil,
		})
	}

	if !offline && h.Cloned() {
		if err := a.ctrl.TestConnection(cmd.Context()); err != nil {
			report.Connection = output.FormatError(err)
		} else {
			report.Connection = "ok"
		}
	}
	return report, nil
}

func init() {
	statusCmd.Flags().Bool("offline", false, "skip the connection test")
	statusCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
