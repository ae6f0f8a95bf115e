package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sessionattendance/internal/calendar"
)

// Roster lists the registration numbers that belong to a batch.
type Roster interface {
	RegistrationNumbers(ctx context.Context, batchID string) ([]string, error)
}

// MarkRequest is one session's worth of submissions for a batch.
type MarkRequest struct {
	BatchID     string
	Date        string
	Session     string
	Submissions []Submission
	MarkedBy    string
}

// Rejection reports a submission that was not stored.
type Rejection struct {
	RegistrationNumber string `json:"registration_number"`
	Err                error  `json:"-"`
}

// MarkResult summarizes a mark call.
type MarkResult struct {
	Record     Record
	Created    bool
	EntryCount int
	Accepted   int
	Rejected   []Rejection
}

// Service is the only writer of attendance records.
type Service struct {
	store  Store
	roster Roster
	now    func() time.Time
}

// NewService creates a service backed by a store. roster may be nil, in
// which case batch membership is not checked.
func NewService(store Store, roster Roster, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, roster: roster, now: now}
}

// Mark validates the request and merges its valid submissions into the
// record for (batch, date, session). Malformed session, date or batch
// abort the call before any write; a bad submission is only rejected on
// its own. When no submission is accepted an existing record only has
// its markedBy and markedAt refreshed, and a missing one is not created;
// the result then carries the key fields and an empty ID.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (MarkResult, error) {
	batchID := strings.TrimSpace(req.BatchID)
	if batchID == "" {
		return MarkResult{}, ErrBatchRequired
	}
	session, err := ParseSession(req.Session)
	if err != nil {
		return MarkResult{}, err
	}
	day, err := calendar.DayStart(req.Date)
	if err != nil {
		return MarkResult{}, fmt.Errorf("%w: %q", err, req.Date)
	}

	var members map[string]bool
	if s.roster != nil {
		regNos, err := s.roster.RegistrationNumbers(ctx, batchID)
		if err != nil {
			return MarkResult{}, fmt.Errorf("load roster for %s: %w: %w", batchID, ErrStoreUnavailable, err)
		}
		members = make(map[string]bool, len(regNos))
		for _, r := range regNos {
			members[NormalizeRegistrationNumber(r)] = true
		}
	}

	var res MarkResult
	entries := make([]Entry, 0, len(req.Submissions))
	for _, sub := range req.Submissions {
		e, err := sub.toEntry()
		if err == nil && members != nil && !members[e.RegistrationNumber] {
			err = fmt.Errorf("%w: %s", ErrNotInBatch, batchID)
		}
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{
				RegistrationNumber: NormalizeRegistrationNumber(sub.RegistrationNumber),
				Err:                err,
			})
			continue
		}
		entries = append(entries, e)
	}

	key := Key{BatchID: batchID, Day: day, Session: session}
	if len(entries) == 0 {
		_, err := s.store.FindByKey(ctx, key)
		if errors.Is(err, ErrNotFound) {
			res.Record = Record{BatchID: batchID, CalendarDate: day, Session: session}
			return res, nil
		}
		if err != nil {
			return MarkResult{}, err
		}
	}
	rec, created, err := s.store.Upsert(ctx, key, entries, req.MarkedBy, s.now())
	if err != nil {
		return MarkResult{}, err
	}
	res.Record = rec
	res.Created = created
	res.EntryCount = len(rec.Entries)
	res.Accepted = len(entries)
	return res, nil
}

// Get returns the record stored for (batch, date, session).
func (s *Service) Get(ctx context.Context, batchID, date, session string) (Record, error) {
	sess, err := ParseSession(session)
	if err != nil {
		return Record{}, err
	}
	day, err := calendar.DayStart(date)
	if err != nil {
		return Record{}, err
	}
	return s.store.FindByKey(ctx, Key{BatchID: batchID, Day: day, Session: sess})
}
