package analyzer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfig_MappingColumns(t *testing.T) {
	p := writeConfig(t, `
database:
  path: /var/lib/sls/logs.db
  batch_size: 200
server:
  listen_addr: 127.0.0.1:8080
  max_upload_size: 10MB
columns:
  uid: user_id
  level: [severity, level]
timestamp:
  location: UTC
  layouts: ["20060102-150405"]
query:
  default_page_size: 20
  max_page_size: 200
runner:
  inputs: ["/data/in/**/*.csv"]
  archive_dir: /data/done
  skip_duplicates: true
log:
  level: debug
  format: json
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	require.Equal(t, "/var/lib/sls/logs.db", cfg.Database.Path)
	require.Equal(t, 200, cfg.Database.BatchSize)
	require.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddr)
	require.Equal(t, 10*datasize.MB, cfg.Server.MaxUploadSize)
	require.Equal(t, 20, cfg.Query.DefaultPageSize)
	require.Equal(t, []string{"/data/in/**/*.csv"}, cfg.Runner.Inputs)
	require.True(t, cfg.Runner.SkipDuplicates)
	require.Equal(t, "json", cfg.Log.Format)

	cols, err := cfg.ColumnAliases()
	require.NoError(t, err)
	require.Equal(t, []string{"user_id"}, cols[FieldUID])
	require.Equal(t, []string{"severity", "level"}, cols[FieldLevel])
	require.Equal(t, DefaultColumnAliases()[FieldMessage], cols[FieldMessage])

	pc, err := cfg.PipelineConfig()
	require.NoError(t, err)
	require.Equal(t, time.UTC, pc.Location)
	require.Equal(t, 200, pc.BatchSize)
	require.Equal(t, []string{"20060102-150405"}, pc.Layouts)
}

func TestLoadConfig_ListColumns(t *testing.T) {
	p := writeConfig(t, `
columns:
  - field: message
    names: [msg, resp]
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	cols, err := cfg.ColumnAliases()
	require.NoError(t, err)
	require.Equal(t, []string{"msg", "resp"}, cols[FieldMessage])
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.Equal(t, "sls_logs.db", cfg.Database.Path)
	require.Equal(t, DefaultBatchSize, cfg.Database.BatchSize)
	require.Equal(t, ":3000", cfg.Server.ListenAddr)
	require.Equal(t, 50*datasize.MB, cfg.Server.MaxUploadSize)
	require.Equal(t, DefaultPageSize, cfg.Query.DefaultPageSize)
	require.Equal(t, MaxPageSize, cfg.Query.MaxPageSize)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "logfmt", cfg.Log.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"unknown field":   "columns:\n  colour: red\n",
		"nested mapping":  "columns:\n  uid: {a: b}\n",
		"bad location":    "timestamp:\n  location: Mars/Olympus\n",
		"page sizes":      "query:\n  default_page_size: 500\n  max_page_size: 100\n",
		"bad upload size": "server:\n  max_upload_size: lots\n",
	} {
		_, err := LoadConfig(writeConfig(t, body))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
