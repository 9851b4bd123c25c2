package analyzer

import (
	"bytes"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// UnknownEventName is used when a row has neither an event name nor a message.
const UnknownEventName = "unknown"

// Normalizer turns raw CSV rows into LogRecords. It never fails on missing or
// extra columns; absent fields default to empty strings.
type Normalizer struct {
	columns    ColumnAliases
	timestamps *TimestampNormalizer
}

func NewNormalizer(columns ColumnAliases, timestamps *TimestampNormalizer) *Normalizer {
	if columns == nil {
		columns = DefaultColumnAliases()
	}
	if timestamps == nil {
		timestamps = NewTimestampNormalizer(nil)
	}
	return &Normalizer{columns: columns, timestamps: timestamps}
}

// Normalize maps one row. The returned record has no SessionID yet.
func (n *Normalizer) Normalize(row map[string]string) LogRecord {
	c := n.columns
	ts, ok := n.timestamps.Normalize(c.Value(row, FieldTimestamp))
	msg := c.Value(row, FieldMessage)

	return LogRecord{
		UID:               c.Value(row, FieldUID),
		SID:               c.Value(row, FieldSID),
		Level:             NormalizeLevel(c.Value(row, FieldLevel)),
		EventName:         n.eventName(row, msg),
		Resp:              msg,
		Device:            c.Value(row, FieldDevice),
		ClientVer:         c.Value(row, FieldClientVer),
		PackVer:           c.Value(row, FieldPackVer),
		Country:           c.Value(row, FieldCountry),
		Store:             c.Value(row, FieldStore),
		Timestamp:         ts,
		TimeUnixNano:      ts.UnixNano(),
		TimestampFallback: !ok,
		RawPayload:        RawPayload(row),
	}
}

// eventName prefers an explicit column, then the first word of the message.
func (n *Normalizer) eventName(row map[string]string, msg string) string {
	if v, ok := n.columns.Lookup(row, FieldEventName); ok {
		return strings.TrimSpace(v)
	}
	if fields := strings.Fields(msg); len(fields) > 0 {
		return fields[0]
	}
	return UnknownEventName
}

// RawPayload serializes the full original row as a JSON object.
func RawPayload(row map[string]string) datatypes.JSON {
	if row == nil {
		row = map[string]string{}
	}
	// Keep <, > and & literal so keyword search sees what the producer wrote.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// A map of strings always encodes.
	_ = enc.Encode(row)
	return datatypes.JSON(bytes.TrimRight(buf.Bytes(), "\n"))
}

// DecodeRawPayload restores the row a RawPayload was built from.
func DecodeRawPayload(raw datatypes.JSON) (map[string]string, error) {
	row := map[string]string{}
	if len(raw) == 0 {
		return row, nil
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}
