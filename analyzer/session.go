package analyzer

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SessionMeta is the caller-supplied metadata of one ingestion run.
type SessionMeta struct {
	Name         string
	FileName     string
	SourceSHA256 string
	SizeBytes    int64
	SkippedRows  int64
}

// SessionName returns label, or a name derived from the source file.
func SessionName(label, fileName string) string {
	if s := strings.TrimSpace(label); s != "" {
		return s
	}
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}
	if base != "" {
		return base
	}
	return "session"
}

// sessionLifecycle drives Session state: created -> finalized, or -> failed.
// create and finalize run inside the caller's transaction, so a rollback
// leaves no trace of the session.
type sessionLifecycle struct {
	logger log.Logger
	now    func() time.Time
}

func (l *sessionLifecycle) create(tx *gorm.DB, meta SessionMeta) (*Session, error) {
	s := &Session{
		Name:         SessionName(meta.Name, meta.FileName),
		FileName:     meta.FileName,
		SourceSHA256: meta.SourceSHA256,
		SizeBytes:    meta.SizeBytes,
		SkippedRows:  meta.SkippedRows,
		UploadedAt:   l.now().UTC(),
		State:        SessionCreated,
	}
	if err := tx.Omit("Records").Create(s).Error; err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	level.Debug(l.logger).Log("msg", "session created", "session", s.ID, "name", s.Name)
	return s, nil
}

// finalize checks that exactly c.TotalLogs records are attached to s and
// then publishes the counters.
func (l *sessionLifecycle) finalize(tx *gorm.DB, s *Session, c Counters) error {
	if s.State != SessionCreated {
		return errors.Errorf("finalize session %d: state is %s", s.ID, s.State)
	}
	var attached int64
	if err := tx.Model(&LogRecord{}).Where("session_id = ?", s.ID).Count(&attached).Error; err != nil {
		return errors.Wrap(err, "count session records")
	}
	if attached != c.TotalLogs {
		return errors.Errorf("finalize session %d: %d records attached, aggregated %d", s.ID, attached, c.TotalLogs)
	}
	res := tx.Model(&Session{}).
		Where("id = ? AND state = ?", s.ID, SessionCreated).
		Updates(map[string]any{
			"state":               SessionFinalized,
			"total_logs":          c.TotalLogs,
			"unique_users":        c.UniqueUsers,
			"error_count":         c.ErrorCount,
			"fallback_timestamps": c.FallbackTimestamps,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "finalize session")
	}
	if res.RowsAffected != 1 {
		return errors.Errorf("finalize session %d: not in created state", s.ID)
	}
	s.State = SessionFinalized
	s.TotalLogs = c.TotalLogs
	s.UniqueUsers = c.UniqueUsers
	s.ErrorCount = c.ErrorCount
	s.FallbackTimestamps = c.FallbackTimestamps
	return nil
}

// fail marks the in-memory session as failed. Its row, if any, was rolled back
// with the transaction, so the ID is cleared.
func (l *sessionLifecycle) fail(s *Session, cause error) *Session {
	if s == nil {
		s = &Session{}
	}
	level.Warn(l.logger).Log("msg", "session failed", "name", s.Name, "err", cause)
	s.ID = 0
	s.State = SessionFailed
	s.TotalLogs, s.UniqueUsers, s.ErrorCount, s.FallbackTimestamps = 0, 0, 0, 0
	return s
}
