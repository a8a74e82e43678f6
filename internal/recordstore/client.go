package recordstore

import (
	"context"
	"time"
)

// Fields holds the mutable payload of a record. Values are whatever the store
// round-trips through JSON: strings, numbers, booleans.
type Fields map[string]any

// String returns the named field as a string, or "" when absent or not a string.
func (f Fields) String(key string) string {
	v, _ := f[key].(string)
	return v
}

// Time returns the named field parsed as a timestamp, or the zero time.
func (f Fields) Time(key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case string:
		return parseTimestamp(v)
	default:
		return time.Time{}
	}
}

// Clone returns a shallow copy of the field map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Record is the envelope returned for every stored document. Created and
// Updated are assigned by the store.
type Record struct {
	ID      string
	Fields  Fields
	Created time.Time
	Updated time.Time
}

// Client is the contract consumed by the relationship engine and the account
// service. Every call is individually atomic; the store offers no multi-record
// transaction, which is precisely why the callers carry their own compensation
// logic.
type Client interface {
	Create(ctx context.Context, kind string, fields Fields) (Record, error)
	Get(ctx context.Context, kind, id string) (Record, error)
	FindOne(ctx context.Context, kind string, filter Filter) (Record, error)
	FindAll(ctx context.Context, kind string, filter Filter) ([]Record, error)
	Update(ctx context.Context, kind, id string, patch Fields) (Record, error)
	Delete(ctx context.Context, kind, id string) error
}

// timestampLayouts covers the formats PocketBase emits alongside RFC 3339.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z",
	time.RFC3339Nano,
	time.RFC3339,
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
