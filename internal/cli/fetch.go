package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hallgren/cfpack/internal/download"
	"github.com/hallgren/cfpack/internal/progress"
)

func newFetchCmd() *cobra.Command {
	var (
		outDir       string
		workers      int
		sha1sum      string
		noResume     bool
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <url> [url...]",
		Short: "Download one or more URLs with resume and verification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg := configFromContext(ctx)

			if workers <= 0 {
				workers = cfg.Workers
			}
			if sha1sum != "" && len(args) > 1 {
				return fmt.Errorf("--sha1 applies to a single url")
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
			manager := download.NewManager(dlOpts)

			var reporter *progress.Reporter
			if showProgress {
				reporter = progress.NewReporter(progress.Options{
					TotalFiles: len(args),
					Workers:    workers,
					PackName:   "fetch",
					Output:     cmd.ErrOrStderr(),
				})
				reporter.Start()
				defer reporter.Stop()
			}

			tasks := make([]download.Task, 0, len(args))
			for _, u := range args {
				spec := download.FetchSpec{NoResume: noResume}
				if sha1sum != "" {
					spec.ExpectedHashes = map[string]string{"sha1": sha1sum}
				}
				tasks = append(tasks, download.Task{URL: u, Folder: outDir, Spec: spec})
				if reporter != nil {
					reporter.FileStarted()
				}
			}

			results := manager.FetchBulk(ctx, tasks, workers, func(res download.Result) {
				if reporter == nil {
					return
				}
				if res.Success {
					reporter.FileCompleted(res.Bytes)
				} else {
					reporter.FileFailed()
				}
			})

			failed := 0
			for _, res := range results {
				if res.Success {
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s, %d attempts)\n",
						res.URL, res.Path, progress.FormatBytes(res.Bytes), res.Attempts)
				} else {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.URL, res.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "destination directory")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel download count")
	cmd.Flags().StringVar(&sha1sum, "sha1", "", "expected SHA-1 digest (single url only)")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore existing partial files")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "show live progress")

	return cmd
}
