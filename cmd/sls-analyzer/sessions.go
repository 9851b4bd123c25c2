package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List ingested sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.queries.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if sessionsJSON {
			return writeJSON(out, sessions)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(out, headerStyle.Render("No sessions found"))
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Found %d session(s)", len(sessions))))
		fmt.Fprintln(out)

		tw := newTable(out, "ID", "Name", "File", "Size", "Uploaded", "Logs", "Users", "Errors", "Fallbacks")
		for _, s := range sessions {
			row(tw, fmt.Sprint(s.ID), truncate(s.Name, 40), truncate(s.FileName, 40),
				humanize.Bytes(uint64(s.SizeBytes)), when(s.UploadedAt),
				count(s.TotalLogs), count(s.UniqueUsers), count(s.ErrorCount), humanize.Comma(s.FallbackTimestamps))
		}
		return tw.Flush()
	},
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(sessionsCmd)
}
