package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sls-log-analyzer/analyzer"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCLI_IngestThenQuery(t *testing.T) {
	tmp := t.TempDir()
	db := filepath.Join(tmp, "cli.db")
	in := filepath.Join(tmp, "in", "day.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(in), 0o755))
	require.NoError(t, os.WriteFile(in, []byte("uid,level,resp,_datetime_\n"+
		"u1,Info,login ok,2026-02-12 10:00:00\n"+
		"u2,Error,pay failed,2026-02-12 10:00:01\n"), 0o644))

	cfgPath := filepath.Join(tmp, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("runner:\n  archive_dir: "+filepath.Join(tmp, "done")+"\nlog:\n  level: error\n"), 0o644))

	var files []analyzer.FileResult
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfgPath, "--db", db, "ingest", "--json", filepath.Join(tmp, "in", "*.csv"))), &files))
	require.Len(t, files, 1)
	require.Equal(t, analyzer.FileIngested, files[0].Outcome)
	require.EqualValues(t, 2, files[0].Result.TotalLogs)
	require.FileExists(t, filepath.Join(tmp, "done", "day.csv"))

	var page analyzer.Page
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfgPath, "--db", db, "logs", "--json", "--level", "Error")), &page))
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "u2", page.Records[0].UID)

	var sessions []analyzer.Session
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfgPath, "--db", db, "sessions", "--json")), &sessions))
	require.Len(t, sessions, 1)
	require.Equal(t, "day", sessions[0].Name)

	var rec analyzer.LogRecord
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfgPath, "--db", db, "show", "--json", "1")), &rec))
	require.Equal(t, "u1", rec.UID)
}

func TestCLI_IngestJSONFailsWhenAFileFails(t *testing.T) {
	tmp := t.TempDir()
	db := filepath.Join(tmp, "cli.db")
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "good.csv"), []byte("uid\nu1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "bad.csv"), []byte("uid\n\xff\n"), 0o644))

	// Flag variables outlive a single Execute; drop any config from earlier tests.
	configPath = ""
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"--db", db, "--log-level", "error", "ingest", "--json", filepath.Join(tmp, "*.csv")})
	err := rootCmd.Execute()
	require.EqualError(t, err, "1 of 2 files failed")

	var files []analyzer.FileResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &files), out.String())
	require.Len(t, files, 2)
	outcomes := map[string]analyzer.FileOutcome{}
	for _, f := range files {
		outcomes[filepath.Base(f.Path)] = f.Outcome
	}
	require.Equal(t, map[string]analyzer.FileOutcome{"bad.csv": analyzer.FileFailed, "good.csv": analyzer.FileIngested}, outcomes)
}
