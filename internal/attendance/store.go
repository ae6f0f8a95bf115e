package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sessionattendance/internal/calendar"
)

// Store persists attendance records keyed by (batch, day, session).
//
// An empty batchID on a query means every batch. A zero start or end
// on FindByDateRange leaves that side of the interval open.
type Store interface {
	// Upsert creates the record for a key or merges entries into it.
	// The returned bool reports whether the record was created.
	Upsert(ctx context.Context, key Key, entries []Entry, markedBy string, markedAt time.Time) (Record, bool, error)
	FindByKey(ctx context.Context, key Key) (Record, error)
	FindByDateRange(ctx context.Context, batchID string, start, end time.Time) ([]Record, error)
	FindByDates(ctx context.Context, batchID string, days []time.Time) ([]Record, error)
}

// MemoryStore is a mutex-guarded Store for tests and single-process use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Upsert merges entries under the write lock, so readers only ever see
// a record before or after the merge.
func (s *MemoryStore) Upsert(ctx context.Context, key Key, entries []Entry, markedBy string, markedAt time.Time) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	key.Day = calendar.Truncate(key.Day)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key.String()]
	if !ok {
		rec = &Record{
			ID:           uuid.NewString(),
			BatchID:      key.BatchID,
			CalendarDate: key.Day,
			Session:      key.Session,
			CreatedAt:    markedAt,
		}
		s.records[key.String()] = rec
	}
	rec.Entries = MergeEntries(rec.Entries, entries)
	rec.MarkedBy = markedBy
	rec.MarkedAt = markedAt
	return cloneRecord(*rec), !ok, nil
}

func (s *MemoryStore) FindByKey(ctx context.Context, key Key) (Record, error) {
	key.Day = calendar.Truncate(key.Day)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key.String()]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(*rec), nil
}

func (s *MemoryStore) FindByDateRange(ctx context.Context, batchID string, start, end time.Time) ([]Record, error) {
	return s.filter(batchID, func(day time.Time) bool {
		if !start.IsZero() && day.Before(start) {
			return false
		}
		return end.IsZero() || day.Before(end)
	}), nil
}

func (s *MemoryStore) FindByDates(ctx context.Context, batchID string, days []time.Time) ([]Record, error) {
	if len(days) == 0 {
		return nil, nil
	}
	return s.filter(batchID, func(day time.Time) bool {
		for _, d := range days {
			if calendar.Contains(d, day) {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) filter(batchID string, match func(time.Time) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if batchID != "" && rec.BatchID != batchID {
			continue
		}
		if match(rec.CalendarDate) {
			out = append(out, cloneRecord(*rec))
		}
	}
	SortRecords(out)
	return out
}

// SortRecords orders records by day, then session (FN first), then batch.
func SortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.CalendarDate.Equal(b.CalendarDate) {
			return a.CalendarDate.Before(b.CalendarDate)
		}
		if a.Session != b.Session {
			return a.Session == SessionFN
		}
		return a.BatchID < b.BatchID
	})
}

func cloneRecord(r Record) Record {
	entries := make([]Entry, len(r.Entries))
	copy(entries, r.Entries)
	r.Entries = entries
	return r
}
