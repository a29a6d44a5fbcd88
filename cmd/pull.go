package cmd

import (
	"log/slog"

	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/history"
	"github.com/marcus/geoedit/internal/output"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:     "pull",
	Short:   "Merge remote changes into the working copy",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openConfigured(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.ctrl.Refresh(ctx)
		if err != nil {
			return err
		}

		err = a.syncer.Pull(ctx, h)
		entry := history.Entry{Op: history.OpPull, Path: h.LocalPath, Result: "success"}
		if err != nil {
			entry.Result = string(gitsync.Classify(err))
			entry.Message = err.Error()
		}
		a.record(ctx, entry)
		if err != nil {
			return err
		}

		slog.Info("pulled", "path", h.LocalPath)
		output.Success("Working copy up to date")
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	Short:   "Push local commits left behind by a failed publish",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openConfigured(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.ctrl.Refresh(ctx)
		if err != nil {
			return err
		}

		err = a.syncer.Push(ctx, h)
		entry := history.Entry{Op: history.OpPush, Path: h.LocalPath, Result: "success"}
		if err != nil {
			entry.Result = string(gitsync.Classify(err))
			entry.Message = err.Error()
		}
		a.record(ctx, entry)
		if err != nil {
			return err
		}

		output.Success("Pushed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pullCmd, pushCmd)
}
