package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arax734/bookshare-app-sub001/internal/backup"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

func newBackupCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, validate and restore store backups",
	}
	cmd.AddCommand(
		newBackupCreateCmd(opts),
		newBackupValidateCmd(),
		newBackupRestoreCmd(opts),
	)
	return cmd
}

func newBackupCreateCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write every collection to a zip archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(opts.cfg.Data.DBPath(), nil, store.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := backup.NewBackupService(s, opts.cfg.Data.BackupDir(), nil).Create(cmd.Context(), output)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ok(out, "Backup written to %s (%d bytes)", color.CyanString(result.Path), result.Size)
			for _, name := range store.Collections {
				fmt.Fprintf(out, "  %-14s %d\n", name, result.Counts[name])
			}
			fmt.Fprintf(out, "  sha256 %s\n", result.Checksum)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default: <data-path>/backups/backup-<timestamp>.bookshare.zip)")
	return cmd
}

func newBackupValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <archive>",
		Short: "Check an archive without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := backup.NewRestoreService(nil, nil).Validate(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, w := range result.Warnings {
				warn(out, "%s", w)
			}
			if !result.Valid {
				for _, e := range result.Errors {
					fmt.Fprintln(out, color.RedString("✗"), e)
				}
				return fmt.Errorf("backup %s is not valid", args[0])
			}
			ok(out, "Backup version %s created %s", result.Manifest.Version, result.Manifest.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newBackupRestoreCmd(opts *options) *cobra.Command {
	var (
		mode   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Load an archive into the store",
		Long: `Load an archive into the store. The server must not be running.

Modes:
  full    delete every document first, then import
  merge   import alongside existing documents, keeping local ones on conflict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			restoreMode := backup.RestoreMode(mode)
			if !restoreMode.Valid() {
				return fmt.Errorf("invalid mode %q (full or merge)", mode)
			}

			s, err := store.New(opts.cfg.Data.DBPath(), nil)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := backup.NewRestoreService(s, nil).Restore(cmd.Context(), args[0], backup.RestoreOptions{
				Mode:   restoreMode,
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range store.Collections {
				fmt.Fprintf(out, "  %-14s imported %d, skipped %d\n", name, result.Imported[name], result.Skipped[name])
			}
			for _, e := range result.Errors {
				warn(out, "%s line %d: %s", e.Collection, e.Line, e.Error)
			}
			if dryRun {
				ok(out, "Dry run complete, nothing written")
				return nil
			}
			ok(out, "Restore complete in %s", result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(backup.RestoreModeMerge), "Restore mode: full or merge")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Read the archive without writing")
	return cmd
}
