package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcus/geoedit/internal/output"
	pkgversion "github.com/marcus/geoedit/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Fprint(output.Stdout, version)
			return nil
		}
		fmt.Fprintf(output.Stdout, "geoedit version %s\n", version)

		if check, _ := cmd.Flags().GetBool("check"); !check {
			return nil
		}
		if pkgversion.IsDevelopmentVersion(version) {
			output.Info("development build, not checking for updates")
			return nil
		}

		checker := &pkgversion.Checker{URL: os.Getenv("GEOEDIT_RELEASES_URL")}
		if path, err := resolveConfigPath(); err == nil {
			checker.CacheDir = filepath.Dir(path)
		}
		r := checker.Check(cmd.Context(), version)
		switch {
		case r.Error != nil:
			return fmt.Errorf("check for updates: %w", r.Error)
		case r.HasUpdate:
			output.Warning("geoedit %s is available", r.LatestVersion)
			if c := pkgversion.UpdateCommand(r.LatestVersion); c != "" {
				output.Info("  %s", c)
			}
		default:
			output.Success("up to date")
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "print the version only")
	versionCmd.Flags().Bool("check", false, "check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}
