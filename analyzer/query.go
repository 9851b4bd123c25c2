package analyzer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// Filter selects log records. Zero values mean "no predicate"; Start and End
// are inclusive.
type Filter struct {
	SessionID uint
	Level     string
	Keyword   string
	Start     *time.Time
	End       *time.Time
	Page      int
	PageSize  int
}

// Page is one page of matching records, newest first. Total counts every
// match before pagination.
type Page struct {
	Records    []LogRecord `json:"logs"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// QueryEngine reads committed sessions and records. It never sees in-flight
// ingestion state.
type QueryEngine struct {
	db          *gorm.DB
	maxPageSize int
	logger      log.Logger
	metrics     *Metrics
}

func NewQueryEngine(db *gorm.DB, maxPageSize int, logger log.Logger, metrics *Metrics) *QueryEngine {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	return &QueryEngine{db: db, maxPageSize: maxPageSize, logger: logger, metrics: metrics}
}

func (q *QueryEngine) validate(f Filter) error {
	if f.Page < 1 {
		return &InvalidFilterError{Field: "page", Reason: "must be at least 1"}
	}
	if f.PageSize < 1 {
		return &InvalidFilterError{Field: "pageSize", Reason: "must be positive"}
	}
	if f.PageSize > q.maxPageSize {
		return &InvalidFilterError{Field: "pageSize", Reason: "must not exceed " + strconv.Itoa(q.maxPageSize)}
	}
	for name, t := range map[string]*time.Time{"startTime": f.Start, "endTime": f.End} {
		if t != nil && (t.Before(minInstant) || t.After(maxInstant)) {
			return &InvalidFilterError{Field: name, Reason: "is out of range"}
		}
	}
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return &InvalidFilterError{Field: "startTime", Reason: "is after endTime"}
	}
	return nil
}

// scope applies every predicate of f. Count and page share it so the total
// and the page can never disagree on what matches.
func (f Filter) scope(db *gorm.DB) *gorm.DB {
	db = db.Model(&LogRecord{})
	if f.SessionID != 0 {
		db = db.Where("session_id = ?", f.SessionID)
	}
	if f.Level != "" {
		db = db.Where("level = ?", f.Level)
	}
	if f.Keyword != "" {
		// instr is case-sensitive, unlike LIKE. resp is matched on its own
		// because the JSON payload escapes quotes and backslashes.
		db = db.Where("(instr(event_name, ?) > 0 OR instr(resp, ?) > 0 OR instr(raw_payload, ?) > 0)",
			f.Keyword, f.Keyword, f.Keyword)
	}
	if f.Start != nil {
		db = db.Where("time_unix_nano >= ?", f.Start.UnixNano())
	}
	if f.End != nil {
		db = db.Where("time_unix_nano <= ?", f.End.UnixNano())
	}
	return db
}

// Query returns one page of records matching f. Pages past the end are empty.
func (q *QueryEngine) Query(ctx context.Context, f Filter) (page *Page, err error) {
	defer func() { q.metrics.observeQuery("logs", err) }()

	f.Level = strings.TrimSpace(f.Level)
	if err := q.validate(f); err != nil {
		return nil, err
	}

	out := &Page{Records: []LogRecord{}, Page: f.Page, PageSize: f.PageSize}
	err = q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(f.scope).Count(&out.Total).Error; err != nil {
			return errors.Wrap(err, "count log records")
		}
		offset := int64(f.Page-1) * int64(f.PageSize)
		if offset >= out.Total {
			return nil
		}
		return errors.Wrap(
			tx.Scopes(f.scope).
				Order("time_unix_nano DESC").
				Order("id ASC").
				Limit(f.PageSize).
				Offset(int(offset)).
				Find(&out.Records).Error,
			"list log records")
	})
	if err != nil {
		return nil, err
	}
	out.TotalPages = int((out.Total + int64(f.PageSize) - 1) / int64(f.PageSize))
	level.Debug(q.logger).Log("msg", "query", "session", f.SessionID, "level", f.Level,
		"keyword", f.Keyword, "page", f.Page, "page_size", f.PageSize, "total", out.Total, "returned", len(out.Records))
	return out, nil
}

// Get returns one record, including its raw payload, or ErrNotFound.
func (q *QueryEngine) Get(ctx context.Context, id uint) (rec *LogRecord, err error) {
	defer func() { q.metrics.observeQuery("log", err) }()

	rec = &LogRecord{}
	err = q.db.WithContext(ctx).First(rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "log record %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get log record %d", id)
	}
	return rec, nil
}

// ListSessions returns every finalized session, most recent upload first.
func (q *QueryEngine) ListSessions(ctx context.Context) (sessions []Session, err error) {
	defer func() { q.metrics.observeQuery("sessions", err) }()

	sessions = []Session{}
	err = q.db.WithContext(ctx).
		Where("state = ?", SessionFinalized).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	return sessions, nil
}

// GetSession returns one finalized session or ErrNotFound.
func (q *QueryEngine) GetSession(ctx context.Context, id uint) (s *Session, err error) {
	defer func() { q.metrics.observeQuery("session", err) }()

	s = &Session{}
	err = q.db.WithContext(ctx).Where("state = ?", SessionFinalized).First(s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "session %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get session %d", id)
	}
	return s, nil
}
