package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hallgren/cfpack/internal/download"
	"github.com/hallgren/cfpack/internal/installer"
	"github.com/hallgren/cfpack/internal/instance"
	"github.com/hallgren/cfpack/internal/progress"
)

func newInstallCmd() *cobra.Command {
	var (
		instanceName string
		gameDir      string
		workers      int
		dryRun       bool
		noBackup     bool
		keepBackup   bool
		overwrite    bool
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "install <manifest.json|pack.zip>",
		Short: "Install a modpack into a game instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg := configFromContext(ctx)

			if instanceName == "" {
				instanceName = cfg.Instance
			}
			if gameDir == "" {
				gameDir = cfg.GameDir
			}
			if workers <= 0 {
				workers = cfg.Workers
			}

			client, err := newAPIClient(cfg)
			if err != nil {
				return err
			}

			dlOpts := download.DefaultOptions()
			dlOpts.MaxAttempts = cfg.Retry.Attempts
			dlOpts.Backoff = cfg.Retry.Backoff
			dlOpts.MaxBackoff = cfg.Retry.MaxBackoff
			dlOpts.Timeout = cfg.Timeout
			if cfg.ChunkSize > 0 {
				dlOpts.ChunkSize = int(cfg.ChunkSize)
			}
			dlOpts.Logger = logger

			layout := instance.NewNamedLayout(gameDir, instanceName)
			logger.Info("target instance", "root", layout.Root)

			opts := installer.Options{
				Files:              client,
				Downloads:          download.NewManager(dlOpts),
				Concurrency:        workers,
				MaxAttempts:        cfg.Retry.Attempts,
				Backup:             cfg.Backup && !noBackup,
				KeepBackup:         keepBackup || cfg.KeepBackup,
				DryRun:             dryRun,
				OverwriteOverrides: overwrite || cfg.Overwrite,
				Logger:             logger,
			}
			if showProgress {
				opts.OnResult = func(res installer.Result) {
					if res.Success {
						logger.Info("installed",
							"file", res.Path,
							"bytes", progress.FormatBytes(res.DownloadedBytes),
							"attempts", res.Attempts)
					} else {
						logger.Error("failed",
							"project", res.Item.ProjectID,
							"file", res.Item.FileID,
							"err", res.Err)
					}
				}
			}

			report, err := installer.New(opts).InstallFromPath(ctx, args[0], layout)
			if err != nil {
				return err
			}

			printReport(cmd, report)
			if !report.Success && !report.DryRun {
				return fmt.Errorf("install failed: %d required files could not be installed", report.FailedRequired)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&instanceName, "instance", "i", "", "instance name under <game-dir>/instances")
	cmd.Flags().StringVar(&gameDir, "game-dir", "", "game directory (default: platform standard)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "download worker count")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan without downloading")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip the pre-install backup")
	cmd.Flags().BoolVar(&keepBackup, "keep-backup", false, "keep the backup even on success")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "let overrides replace existing files")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "show live progress")

	return cmd
}

func printReport(cmd *cobra.Command, report *installer.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pack:      %s %s\n", report.PackName, report.PackVersion)
	if report.DryRun {
		fmt.Fprintf(out, "Dry run:   %d files planned\n", report.TotalFiles)
		for _, res := range report.Results {
			fmt.Fprintf(out, "  %d/%d -> %s\n", res.Item.ProjectID, res.Item.FileID, res.Item.TargetPath)
		}
		return
	}
	fmt.Fprintf(out, "Files:     %d total, %d installed, %d failed (%d optional)\n",
		report.TotalFiles, report.Successful, report.FailedRequired+report.FailedOptional, report.FailedOptional)
	fmt.Fprintf(out, "Overrides: %s\n", report.OverrideStatus)
	fmt.Fprintf(out, "Backup:    %s\n", report.BackupStatus)
	if report.RolledBack {
		fmt.Fprintln(out, "Rollback:  instance restored from backup")
	}
	fmt.Fprintf(out, "Elapsed:   %s\n", report.Elapsed.Round(time.Millisecond))
	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Fprintf(out, "  failed %d/%d: %v\n", res.Item.ProjectID, res.Item.FileID, res.Err)
		}
	}
}
