package analyzer

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Field is a logical LogRecord field that may arrive under several column names.
type Field string

const (
	FieldUID       Field = "uid"
	FieldSID       Field = "sid"
	FieldLevel     Field = "level"
	FieldEventName Field = "event_name"
	FieldMessage   Field = "message"
	FieldTimestamp Field = "timestamp"
	FieldDevice    Field = "device"
	FieldClientVer Field = "client_ver"
	FieldPackVer   Field = "pack_ver"
	FieldCountry   Field = "country"
	FieldStore     Field = "store"
)

var knownFields = map[Field]struct{}{
	FieldUID: {}, FieldSID: {}, FieldLevel: {}, FieldEventName: {}, FieldMessage: {},
	FieldTimestamp: {}, FieldDevice: {}, FieldClientVer: {}, FieldPackVer: {},
	FieldCountry: {}, FieldStore: {},
}

// ColumnAliases lists, per logical field, the column names to try in order.
type ColumnAliases map[Field][]string

// DefaultColumnAliases covers both historical export schemas.
func DefaultColumnAliases() ColumnAliases {
	return ColumnAliases{
		FieldUID:       {"uid"},
		FieldSID:       {"sid"},
		FieldLevel:     {"level", "event_type", "_level_"},
		FieldEventName: {"event_name"},
		FieldMessage:   {"resp", "message"},
		FieldTimestamp: {"_datetime_", "datetime", "timestamp", "time"},
		FieldDevice:    {"device"},
		FieldClientVer: {"clientVer", "client_version"},
		FieldPackVer:   {"packVer", "pack_version"},
		FieldCountry:   {"country"},
		FieldStore:     {"store"},
	}
}

// Lookup returns the first non-empty value found under any alias of f.
func (c ColumnAliases) Lookup(row map[string]string, f Field) (string, bool) {
	for _, name := range c[f] {
		if v, ok := row[name]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Value is Lookup with an empty-string default.
func (c ColumnAliases) Value(row map[string]string, f Field) string {
	v, _ := c.Lookup(row, f)
	return v
}

// Merge returns a copy of c with the fields in overrides replaced.
func (c ColumnAliases) Merge(overrides ColumnAliases) (ColumnAliases, error) {
	out := make(ColumnAliases, len(c))
	for f, names := range c {
		out[f] = append([]string(nil), names...)
	}
	fields := make([]string, 0, len(overrides))
	for f := range overrides {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, name := range fields {
		f := Field(name)
		if _, ok := knownFields[f]; !ok {
			return nil, errors.Errorf("unknown column field %q", name)
		}
		names := make([]string, 0, len(overrides[f]))
		for _, n := range overrides[f] {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			return nil, errors.Errorf("column field %q has no names", name)
		}
		out[f] = names
	}
	return out, nil
}
