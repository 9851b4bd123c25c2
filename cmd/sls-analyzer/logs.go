package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sls-log-analyzer/analyzer"
)

var (
	logsSession  uint
	logsLevel    string
	logsKeyword  string
	logsStart    string
	logsEnd      string
	logsPage     int
	logsPageSize int
	logsJSON     bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Search log records, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		times := analyzer.NewTimestampNormalizer(loc, cfg.Timestamp.Layouts...)
		f := analyzer.Filter{
			SessionID: logsSession,
			Level:     logsLevel,
			Keyword:   logsKeyword,
			Page:      logsPage,
			PageSize:  cfg.Query.DefaultPageSize,
		}
		if cmd.Flags().Changed("page-size") {
			f.PageSize = logsPageSize
		}
		if f.Start, err = parseFlagTime(times, "start", logsStart); err != nil {
			return err
		}
		if f.End, err = parseFlagTime(times, "end", logsEnd); err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := a.queries.Query(cmd.Context(), f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if logsJSON {
			return writeJSON(out, page)
		}
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Page %d/%d, %s matching record(s)",
			page.Page, max(page.TotalPages, 1), count(page.Total))))
		fmt.Fprintln(out)
		if len(page.Records) == 0 {
			return nil
		}
		tw := newTable(out, "ID", "Time (UTC)", "Level", "Event", "UID", "Session", "Message")
		for _, r := range page.Records {
			ts := r.Timestamp.UTC().Format(time.DateTime)
			if r.TimestampFallback {
				ts = dimStyle.Render(ts + "*")
			}
			row(tw, fmt.Sprint(r.ID), ts, levelCell(r.Level), truncate(r.EventName, 30), r.UID,
				fmt.Sprint(r.SessionID), truncate(r.Resp, 60))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out, dimStyle.Render("* timestamp missing or unparseable, capture time shown"))
		return nil
	},
}

func parseFlagTime(times *analyzer.TimestampNormalizer, name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	ts, ok := times.Parse(v)
	if !ok {
		return nil, &analyzer.InvalidFilterError{Field: name, Reason: "is not a recognized timestamp"}
	}
	return &ts, nil
}

func init() {
	logsCmd.Flags().UintVarP(&logsSession, "session", "s", 0, "Session ID")
	logsCmd.Flags().StringVarP(&logsLevel, "level", "l", "", "Exact category, e.g. Error")
	logsCmd.Flags().StringVarP(&logsKeyword, "keyword", "k", "", "Case-sensitive substring of event name, message or raw row")
	logsCmd.Flags().StringVar(&logsStart, "start", "", "Earliest timestamp, inclusive")
	logsCmd.Flags().StringVar(&logsEnd, "end", "", "Latest timestamp, inclusive")
	logsCmd.Flags().IntVarP(&logsPage, "page", "p", 1, "Page number, from 1")
	logsCmd.Flags().IntVar(&logsPageSize, "page-size", analyzer.DefaultPageSize, "Records per page (default query.default_page_size)")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(logsCmd)
}
