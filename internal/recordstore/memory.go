package recordstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewMemory returns a Client backed by in-process maps. It implements the same
// single-record atomicity contract as the remote store and is used by tests
// and local development.
func NewMemory() *Memory {
	return &Memory{
		kinds: make(map[string]map[string]Record),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Memory implements Client without any external service.
type Memory struct {
	mu    sync.Mutex
	kinds map[string]map[string]Record
	now   func() time.Time
}

// SetNowFunc overrides the time source. Useful for tests.
func (m *Memory) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Create stores a new record and assigns it an id.
func (m *Memory) Create(_ context.Context, kind string, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.kinds[kind]
	if !ok {
		records = make(map[string]Record)
		m.kinds[kind] = records
	}

	now := m.now()
	rec := Record{
		ID:      uuid.NewString(),
		Fields:  fields.Clone(),
		Created: now,
		Updated: now,
	}
	records[rec.ID] = rec
	return cloneRecord(rec), nil
}

// Get fetches a record by id.
func (m *Memory) Get(_ context.Context, kind, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.kinds[kind][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// FindOne returns the oldest record matching the filter, or ErrNotFound.
func (m *Memory) FindOne(ctx context.Context, kind string, filter Filter) (Record, error) {
	matches, err := m.FindAll(ctx, kind, filter)
	if err != nil {
		return Record{}, err
	}
	if len(matches) == 0 {
		return Record{}, ErrNotFound
	}
	return matches[0], nil
}

// FindAll returns every matching record ordered by creation time.
func (m *Memory) FindAll(_ context.Context, kind string, filter Filter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.kinds[kind] {
		if filter.Match(rec.Fields) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// Update merges the patch into an existing record.
func (m *Memory) Update(_ context.Context, kind, id string, patch Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.kinds[kind][id]
	if !ok {
		return Record{}, ErrNotFound
	}

	fields := rec.Fields.Clone()
	for k, v := range patch {
		fields[k] = v
	}
	rec.Fields = fields
	rec.Updated = m.now()
	m.kinds[kind][id] = rec
	return cloneRecord(rec), nil
}

// Delete removes a record by id.
func (m *Memory) Delete(_ context.Context, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.kinds[kind][id]; !ok {
		return ErrNotFound
	}
	delete(m.kinds[kind], id)
	return nil
}

func cloneRecord(rec Record) Record {
	rec.Fields = rec.Fields.Clone()
	return rec
}

var _ Client = (*Memory)(nil)
