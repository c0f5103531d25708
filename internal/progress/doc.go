// Package progress provides progress reporting for install runs.
//
// This package outputs human-readable progress information, including
// file counts, bytes transferred, transfer speed, and elapsed time.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalFiles: len(plan),
//	    Workers:    concurrency,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Update as files complete
//	reporter.FileCompleted(bytesDownloaded)
//
// # Output Format
//
//	[cfpack] Installing: All the Mods 9 | Files: 247 | Workers: 4
//	[cfpack] Progress: 113 / 247 files | 1.2 GB | Speed: 14.3 MB/s
//	[cfpack] Files: 110 completed | 3 failed | 4 in-progress | 130 pending
package progress
