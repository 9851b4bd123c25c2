package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sls-log-analyzer/analyzer"
)

var (
	ingestArchiveDir     string
	ingestErrorDir       string
	ingestSkipDuplicates bool
	ingestSessionName    string
	ingestJSON           bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file or glob ...]",
	Short: "Ingest CSV files, one session per file",
	Long: `Ingest every file matched by the arguments, or by runner.inputs when no
arguments are given. Globs may use ** to match any number of directories.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc := analyzer.RunnerConfig{
			Inputs:         cfg.Runner.Inputs,
			ArchiveDir:     cfg.Runner.ArchiveDir,
			ErrorDir:       cfg.Runner.ErrorDir,
			SkipDuplicates: cfg.Runner.SkipDuplicates,
			SessionName:    ingestSessionName,
		}
		if len(args) > 0 {
			rc.Inputs = args
		}
		flags := cmd.Flags()
		if flags.Changed("archive-dir") {
			rc.ArchiveDir = ingestArchiveDir
		}
		if flags.Changed("error-dir") {
			rc.ErrorDir = ingestErrorDir
		}
		if flags.Changed("skip-duplicates") {
			rc.SkipDuplicates = ingestSkipDuplicates
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		runner, err := analyzer.NewRunner(a.db, a.pipeline, rc, logger)
		if err != nil {
			return err
		}
		sum, err := runner.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if ingestJSON {
			if err := writeJSON(cmd.OutOrStdout(), sum.Files); err != nil {
				return err
			}
		} else {
			printRunSummary(cmd, sum)
		}
		if sum.Failed > 0 {
			return fmt.Errorf("%d of %d files failed", sum.Failed, len(sum.Files))
		}
		return nil
	},
}

func printRunSummary(cmd *cobra.Command, sum *analyzer.RunSummary) {
	out := cmd.OutOrStdout()
	if len(sum.Files) == 0 {
		fmt.Fprintln(out, headerStyle.Render("No files matched"))
		return
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Processed %d file(s) in %s", len(sum.Files), sum.Elapsed.Round(time.Millisecond))))
	fmt.Fprintln(out)

	tw := newTable(out, "File", "Outcome", "Session", "Logs", "Users", "Errors", "Fallbacks", "Warnings")
	for _, f := range sum.Files {
		switch f.Outcome {
		case analyzer.FileIngested:
			r := f.Result
			row(tw, f.Path, countStyle.Render(string(f.Outcome)), fmt.Sprintf("#%d %s", r.SessionID, r.SessionName),
				count(r.TotalLogs), count(r.UniqueUsers), count(r.ErrorCount),
				humanize.Comma(r.FallbackTimestamps), fmt.Sprint(r.WarningCount))
		case analyzer.FileDuplicate:
			row(tw, f.Path, dimStyle.Render(string(f.Outcome)), "", "", "", "", "", "")
		default:
			row(tw, f.Path, errorStyle.Render(string(f.Outcome)), truncate(f.Err.Error(), 80), "", "", "", "", "")
		}
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "ingested %d, skipped %d, failed %d, %s log records\n",
		sum.Ingested, sum.Skipped, sum.Failed, humanize.Comma(sum.TotalLogs))
}

func init() {
	ingestCmd.Flags().StringVar(&ingestArchiveDir, "archive-dir", "", "Move ingested files here (overrides runner.archive_dir)")
	ingestCmd.Flags().StringVar(&ingestErrorDir, "error-dir", "", "Move failed files here (overrides runner.error_dir)")
	ingestCmd.Flags().BoolVar(&ingestSkipDuplicates, "skip-duplicates", false, "Skip files already ingested with identical content")
	ingestCmd.Flags().StringVarP(&ingestSessionName, "name", "n", "", "Session name (default: file name without extension)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Print per-file results as JSON")
	rootCmd.AddCommand(ingestCmd)
}
