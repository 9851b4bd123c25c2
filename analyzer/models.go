package analyzer

import (
	"time"

	"gorm.io/datatypes"
)

type SessionState string

const (
	SessionCreated   SessionState = "created"
	SessionFinalized SessionState = "finalized"
	SessionFailed    SessionState = "failed"
)

// Session is one ingestion run over one uploaded file.
// Counters are written in the same transaction that commits the session's
// records, so a committed Session always describes exactly its LogRecords.
type Session struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:255;not null" json:"sessionName"`
	FileName string `gorm:"size:1024;index:idx_sessions_file_sha,priority:1" json:"fileName"`

	// SourceSHA256 is the digest of the raw uploaded bytes, computed while streaming.
	SourceSHA256 string       `gorm:"column:source_sha256;size:64;index:idx_sessions_file_sha,priority:2" json:"sourceSha256"`
	SizeBytes    int64        `json:"sizeBytes"`
	UploadedAt   time.Time    `gorm:"index" json:"uploadTime"`
	State        SessionState `gorm:"size:16;index" json:"status"`

	TotalLogs          int64 `json:"totalLogs"`
	UniqueUsers        int64 `json:"uniqueUsers"`
	ErrorCount         int64 `json:"errorCount"`
	FallbackTimestamps int64 `json:"fallbackTimestamps"`
	SkippedRows        int64 `json:"skippedRows"`

	Records []LogRecord `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) Counters() Counters {
	return Counters{
		TotalLogs:          s.TotalLogs,
		UniqueUsers:        s.UniqueUsers,
		ErrorCount:         s.ErrorCount,
		FallbackTimestamps: s.FallbackTimestamps,
	}
}

// LogRecord is one normalized client event.
type LogRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SessionID uint   `gorm:"not null;index:idx_logs_session_time,priority:1" json:"sessionId"`
	UID       string `gorm:"column:uid;size:255;index" json:"uid"`
	SID       string `gorm:"column:sid;size:255" json:"sid"`
	Level     string `gorm:"size:64;index" json:"level"`
	EventName string `gorm:"size:255" json:"eventName"`
	Resp      string `gorm:"type:text" json:"resp"`
	Device    string `gorm:"size:255" json:"device"`
	ClientVer string `gorm:"size:64" json:"clientVer"`
	PackVer   string `gorm:"size:64" json:"packVer"`
	Country   string `gorm:"size:64" json:"country"`
	Store     string `gorm:"size:64" json:"store"`

	Timestamp time.Time `gorm:"not null" json:"datetime"`

	// TimeUnixNano mirrors Timestamp and backs ordering and range predicates.
	TimeUnixNano int64 `gorm:"not null;index:idx_logs_session_time,priority:2;index" json:"-"`

	// TimestampFallback is set when the source timestamp was missing or
	// unparseable and Timestamp holds the capture time instead.
	TimestampFallback bool `json:"timestampFallback"`

	RawPayload datatypes.JSON `gorm:"type:text" json:"rawPayload"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (LogRecord) TableName() string { return "logs" }

// Counters are the per-session aggregates.
type Counters struct {
	TotalLogs          int64 `json:"totalLogs"`
	UniqueUsers        int64 `json:"uniqueUsers"`
	ErrorCount         int64 `json:"errorCount"`
	FallbackTimestamps int64 `json:"fallbackTimestamps"`
}
