package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/geoedit/internal/config"
	"github.com/marcus/geoedit/internal/output"
	"github.com/marcus/geoedit/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var errRequired = errors.New("required")

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage the geoedit configuration",
	GroupID: "system",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update the configuration",
	Long: `Create or update the configuration file.

Without --no-input an interactive form is shown, prefilled with the current
values. With --no-input the flags are applied to the existing file as is.
The token is read from the form or from $GEOEDIT_TOKEN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		before := cfg.Clone()
		if err := applyConfigFlags(cmd.Flags(), cfg); err != nil {
			return err
		}

		noInput, _ := cmd.Flags().GetBool("no-input")
		if !noInput {
			if err := runConfigForm(cfg); err != nil {
				return err
			}
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		output.Success("Configuration saved to %s", path)

		// An existing working copy keeps the remote and credentials it was
		// cloned with until origin is updated.
		ctrl := session.New(before, newSyncer(cfg))
		if err := ctrl.Reconfigure(cmd.Context(), cfg); err != nil {
			output.Warning("the working copy still uses the previous remote: %s", output.FormatError(err))
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration with the token hidden",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := cfg.Redacted()
		if err != nil {
			return err
		}
		fmt.Fprintln(output.Stdout, string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(output.Stdout, path)
		return nil
	},
}

// applyConfigFlags copies explicitly set flags onto cfg.
func applyConfigFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	set := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	set("remote-url", &cfg.RemoteURL)
	set("local-path", &cfg.LocalPath)
	set("username", &cfg.Username)
	set("author-name", &cfg.AuthorName)
	set("author-email", &cfg.AuthorEmail)

	if flags.Changed("source") {
		specs, _ := flags.GetStringArray("source")
		sources, err := parseSourceSpecs(specs)
		if err != nil {
			return err
		}
		cfg.DataSources = sources
	}
	return nil
}

// parseSourceSpecs parses name=path[#col1,col2] entries.
func parseSourceSpecs(specs []string) ([]config.DataSource, error) {
	sources := make([]config.DataSource, 0, len(specs))
	for _, spec := range specs {
		name, rest, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(rest) == "" {
			return nil, fmt.Errorf("invalid --source %q (use name=path or name=path#col1,col2)", spec)
		}
		path, cols, _ := strings.Cut(rest, "#")
		sources = append(sources, config.DataSource{
			Name:    strings.TrimSpace(name),
			Path:    strings.TrimSpace(path),
			Columns: splitList(cols),
		})
	}
	return sources, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errRequired
	}
	return nil
}

// runConfigForm edits cfg interactively. Only the first data source is
// editable here; the others are kept untouched.
func runConfigForm(cfg *config.Config) error {
	var first config.DataSource
	if len(cfg.DataSources) > 0 {
		first = cfg.DataSources[0]
	}
	columns := strings.Join(first.Columns, ", ")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Remote URL").
				Description("HTTPS address of the git repository").
				Placeholder("https://github.com/org/data.git").
				Value(&cfg.RemoteURL).
				Validate(required),
			huh.NewInput().
				Title("Local path").
				Description("Where the working copy is cloned").
				Placeholder("~/geoedit/data").
				Value(&cfg.LocalPath).
				Validate(required),
			huh.NewInput().
				Title("Username").
				Value(&cfg.Username),
			huh.NewInput().
				Title("Token").
				Description("Personal access token, stored in the configuration file").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Token),
		).Title("Repository"),
		huh.NewGroup(
			huh.NewInput().
				Title("Author name").
				Placeholder("defaults to the username").
				Value(&cfg.AuthorName),
			huh.NewInput().
				Title("Author email").
				Placeholder("defaults to <username>@users.noreply.github.com").
				Value(&cfg.AuthorEmail),
		).Title("Commit identity"),
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("cantines").
				Value(&first.Name).
				Validate(required),
			huh.NewInput().
				Title("Path").
				Description("GeoJSON file, relative to the working copy").
				Placeholder("data/cantines.geojson").
				Value(&first.Path).
				Validate(required),
			huh.NewInput().
				Title("Columns").
				Description("Visible properties, comma separated; empty shows all").
				Value(&columns),
		).Title("Data source"),
	)
	if err := form.Run(); err != nil {
		return err
	}

	first.Columns = splitList(columns)
	if len(cfg.DataSources) == 0 {
		cfg.DataSources = []config.DataSource{first}
	} else {
		cfg.DataSources[0] = first
	}
	return nil
}

func init() {
	f := configInitCmd.Flags()
	f.Bool("no-input", false, "do not prompt; apply flags only")
	f.String("remote-url", "", "HTTPS remote URL")
	f.String("local-path", "", "working copy path")
	f.String("username", "", "remote username")
	f.String("author-name", "", "commit author name")
	f.String("author-email", "", "commit author email")
	f.StringArray("source", nil, "data source as name=path[#col1,col2] (repeatable, replaces existing)")

	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
