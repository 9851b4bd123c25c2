package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sls-log-analyzer/analyzer"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <log-id>",
	Short: "Show one log record with its original row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid log id %q", args[0])
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.queries.Get(cmd.Context(), uint(id))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if showJSON {
			return writeJSON(out, rec)
		}

		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Log #%d (session %d)", rec.ID, rec.SessionID)))
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		ts := rec.Timestamp.UTC().Format(time.RFC3339Nano)
		if rec.TimestampFallback {
			ts += dimStyle.Render(" (capture time)")
		}
		for _, kv := range [][2]string{
			{"Time", ts},
			{"Level", levelCell(rec.Level)},
			{"Event", rec.EventName},
			{"UID", rec.UID},
			{"SID", rec.SID},
			{"Device", rec.Device},
			{"Client", rec.ClientVer},
			{"Pack", rec.PackVer},
			{"Country", rec.Country},
			{"Store", rec.Store},
			{"Message", rec.Resp},
		} {
			fmt.Fprintf(tw, "%s\t%s\n", titleStyle.Render(kv[0]), kv[1])
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		row, err := analyzer.DecodeRawPayload(rec.RawPayload)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, headerStyle.Render("Original row"))
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, k := range keys {
			v, _ := json.Marshal(row[k])
			fmt.Fprintf(tw, "%s\t%s\n", dimStyle.Render(k), v)
		}
		return tw.Flush()
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(showCmd)
}
