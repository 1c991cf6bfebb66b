// Package cli implements the bookshare operator command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arax734/bookshare-app-sub001/internal/config"
)

type options struct {
	dataPath string
	envFile  string
	noColor  bool

	cfg *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "bookshare",
		Short: "Operate a bookshare server's data directory",
		Long: `bookshare inspects and prepares the data directory used by the API server.

Configuration is read the same way the server reads it: flags, then
environment variables, then the .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.NoColor = true
			}

			cfgArgs := []string{"--env-file", opts.envFile}
			if opts.dataPath != "" {
				cfgArgs = append(cfgArgs, "--data-path", opts.dataPath)
			}
			cfg, err := config.Load(cfgArgs)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.dataPath, "data-path", "", "Base path for the database and caches (default: $DATA_PATH)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to .env file")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newSeedCmd(opts),
		newInspectCmd(opts),
		newTokenCmd(opts),
		newCacheCmd(opts),
		newBackupCmd(opts),
	)
	return root
}

// Execute is the entry point called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

// ok prints a green success line.
func ok(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.GreenString("✓"), fmt.Sprintf(format, a...))
}

// warn prints a yellow warning line.
func warn(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.YellowString("!"), fmt.Sprintf(format, a...))
}
