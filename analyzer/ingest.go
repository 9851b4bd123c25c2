package analyzer

import (
	"context"
	"io"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultBatchSize = 500

	// At most this many warnings are returned to the caller; all are counted.
	maxReportedWarnings = 100
)

type PipelineConfig struct {
	Columns   ColumnAliases
	Location  *time.Location
	Layouts   []string
	BatchSize int
}

// IngestResult summarizes one committed ingestion run.
type IngestResult struct {
	SessionID          uint         `json:"sessionId"`
	SessionName        string       `json:"sessionName"`
	TotalLogs          int64        `json:"totalLogs"`
	UniqueUsers        int64        `json:"uniqueUsers"`
	ErrorCount         int64        `json:"errorCount"`
	FallbackTimestamps int64        `json:"fallbackTimestamps"`
	SkippedRows        int64        `json:"skippedRows"`
	WarningCount       int          `json:"warningCount"`
	Warnings           []RowWarning `json:"warnings,omitempty"`
}

// Pipeline streams one CSV file into a new Session. Each call to Ingest owns
// its aggregator and buffer; concurrent calls are independent.
type Pipeline struct {
	db         *gorm.DB
	normalizer *Normalizer
	sessions   *sessionLifecycle
	batchSize  int
	logger     log.Logger
	metrics    *Metrics
	now        func() time.Time
}

func NewPipeline(db *gorm.DB, cfg PipelineConfig, logger log.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	p := &Pipeline{
		db:         db,
		normalizer: NewNormalizer(cfg.Columns, NewTimestampNormalizer(cfg.Location, cfg.Layouts...)),
		batchSize:  cfg.BatchSize,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
	p.sessions = &sessionLifecycle{logger: logger, now: func() time.Time { return p.now() }}
	return p
}

// Ingest decodes r row by row, normalizes and aggregates every row, and then
// commits the Session and all of its records in one transaction. On any
// decode or persistence failure nothing is written and an *IngestionError is
// returned. The caller owns r.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader, sourceName, sessionLabel string) (*IngestResult, error) {
	start := p.now()
	logger := log.With(p.logger, "source", sourceName)

	src := NewRowSource(r)
	agg := NewAggregator()
	var (
		records  []LogRecord
		warnings []RowWarning
		warned   int
		skipped  int64
	)
	warn := func(line int, reason string) {
		warned++
		level.Warn(logger).Log("msg", "row warning", "line", line, "reason", reason)
		if len(warnings) < maxReportedWarnings {
			warnings = append(warnings, RowWarning{Line: line, Reason: reason})
		}
	}
	abort := func(s *Session, err error) (*IngestResult, error) {
		if s == nil {
			s = &Session{Name: SessionName(sessionLabel, sourceName), FileName: sourceName}
		}
		s = p.sessions.fail(s, err)
		p.metrics.observeIngest("failed", p.now().Sub(start).Seconds(), Counters{}, warned)
		return nil, &IngestionError{Source: sourceName, Session: s, Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return abort(nil, err)
		}
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return abort(nil, err)
		}
		if row.Blank() {
			skipped++
			warn(row.Line, "blank row skipped")
			continue
		}
		if row.Extra > 0 {
			warn(row.Line, "row has more fields than the header")
		}
		rec := p.normalizer.Normalize(row.Fields)
		if rec.TimestampFallback {
			level.Debug(logger).Log("msg", "timestamp fallback used", "line", row.Line)
		}
		agg.Add(&rec)
		records = append(records, rec)
	}

	counters := agg.Snapshot()
	meta := SessionMeta{
		Name:         sessionLabel,
		FileName:     sourceName,
		SourceSHA256: src.Digest(),
		SizeBytes:    src.Size(),
		SkippedRows:  skipped,
	}

	var session *Session
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := p.sessions.create(tx, meta)
		if err != nil {
			return err
		}
		session = s
		for i := range records {
			records[i].SessionID = s.ID
		}
		if len(records) > 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(&records, p.batchSize).Error; err != nil {
				return errors.Wrap(err, "insert log records")
			}
		}
		return p.sessions.finalize(tx, s, counters)
	})
	if err != nil {
		return abort(session, &PersistenceError{Err: err})
	}

	p.metrics.observeIngest("ok", p.now().Sub(start).Seconds(), counters, warned)
	level.Info(logger).Log("msg", "ingestion finished", "session", session.ID,
		"total_logs", counters.TotalLogs, "unique_users", counters.UniqueUsers,
		"error_count", counters.ErrorCount, "fallback_timestamps", counters.FallbackTimestamps,
		"warnings", warned, "duration", p.now().Sub(start))

	return &IngestResult{
		SessionID:          session.ID,
		SessionName:        session.Name,
		TotalLogs:          counters.TotalLogs,
		UniqueUsers:        counters.UniqueUsers,
		ErrorCount:         counters.ErrorCount,
		FallbackTimestamps: counters.FallbackTimestamps,
		SkippedRows:        skipped,
		WarningCount:       warned,
		Warnings:           warnings,
	}, nil
}
