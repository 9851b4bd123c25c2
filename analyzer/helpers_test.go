package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "logs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })
	return db
}

func newTestPipeline(t *testing.T, db *gorm.DB) *Pipeline {
	t.Helper()
	p := NewPipeline(db, PipelineConfig{BatchSize: 4}, nil, nil)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func mustIngest(t *testing.T, p *Pipeline, source, body string) *IngestResult {
	t.Helper()
	res, err := p.Ingest(context.Background(), strings.NewReader(body), source, "")
	require.NoError(t, err)
	return res
}

// csvRows builds a CSV with n rows, one second apart starting at base.
func csvRows(n int, base time.Time, level func(i int) string) string {
	var b strings.Builder
	b.WriteString("uid,sid,level,resp,_datetime_\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "u%d,s1,%s,event%d ok,%s\n", i%3, level(i), i, base.Add(time.Duration(i)*time.Second).Format(time.RFC3339))
	}
	return b.String()
}

func countRows(t *testing.T, db *gorm.DB) (sessions, logs int64) {
	t.Helper()
	require.NoError(t, db.Model(&Session{}).Count(&sessions).Error)
	require.NoError(t, db.Model(&LogRecord{}).Count(&logs).Error)
	return sessions, logs
}
