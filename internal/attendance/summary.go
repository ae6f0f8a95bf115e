package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"sessionattendance/internal/calendar"
)

// MaxRangeDays bounds the number of days a range summary may span.
const MaxRangeDays = 366

// SessionStats counts entries for one session.
type SessionStats struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	OnDuty  int `json:"onDuty"`
}

func (s *SessionStats) add(e Entry) {
	s.Total++
	switch e.Status {
	case Present:
		s.Present++
	case Absent:
		s.Absent++
	case OnDuty:
		s.OnDuty++
	}
}

// DaySummary holds both sessions of one civil date.
type DaySummary struct {
	Date string       `json:"date"`
	FN   SessionStats `json:"FN"`
	AN   SessionStats `json:"AN"`
}

func (d *DaySummary) add(rec Record) {
	stats := &d.FN
	if rec.Session == SessionAN {
		stats = &d.AN
	}
	for _, e := range rec.Entries {
		stats.add(e)
	}
}

// Aggregator computes read-only summaries over a Store.
type Aggregator struct {
	store Store
}

// NewAggregator creates an aggregator.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// SummarizeDay returns the FN and AN stats for one date. Missing records
// yield zero stats.
func (a *Aggregator) SummarizeDay(ctx context.Context, batchID, date string) (DaySummary, error) {
	start, end, err := calendar.DayRange(date)
	if err != nil {
		return DaySummary{}, err
	}
	recs, err := a.store.FindByDateRange(ctx, batchID, start, end)
	if err != nil {
		return DaySummary{}, err
	}
	sum := DaySummary{Date: calendar.CivilDate(start)}
	for _, rec := range recs {
		sum.add(rec)
	}
	return sum, nil
}

// SummarizeDates returns one summary per distinct requested date, sorted
// ascending.
func (a *Aggregator) SummarizeDates(ctx context.Context, batchID string, dates []string) ([]DaySummary, error) {
	days := make([]time.Time, 0, len(dates))
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		day, err := calendar.DayStart(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, d)
		}
		if civil := calendar.CivilDate(day); !seen[civil] {
			seen[civil] = true
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return []DaySummary{}, nil
	}
	recs, err := a.store.FindByDates(ctx, batchID, days)
	if err != nil {
		return nil, err
	}
	return rollUp(days, recs), nil
}

// SummarizeRange returns a summary for every date from start to end,
// both inclusive.
func (a *Aggregator) SummarizeRange(ctx context.Context, batchID, startDate, endDate string) ([]DaySummary, error) {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	recs, err := a.store.FindByDateRange(ctx, batchID, start, end)
	if err != nil {
		return nil, err
	}
	var days []time.Time
	for d := start; d.Before(end); d = calendar.NextDayStart(d) {
		days = append(days, d)
	}
	return rollUp(days, recs), nil
}

// StudentStatsBetween loads a batch's records in [startDate, endDate] and
// computes one student's stats. Empty dates leave that side open.
func (a *Aggregator) StudentStatsBetween(ctx context.Context, batchID, regNo, startDate, endDate string) (StudentStats, error) {
	start, end, err := OptionalRange(startDate, endDate)
	if err != nil {
		return StudentStats{}, err
	}
	recs, err := a.store.FindByDateRange(ctx, batchID, start, end)
	if err != nil {
		return StudentStats{}, err
	}
	return ComputeStudentStats(regNo, recs), nil
}

func rollUp(days []time.Time, recs []Record) []DaySummary {
	byDate := make(map[string]*DaySummary, len(days))
	out := make([]DaySummary, len(days))
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for i, d := range days {
		out[i].Date = calendar.CivilDate(d)
		byDate[out[i].Date] = &out[i]
	}
	for _, rec := range recs {
		if sum, ok := byDate[rec.Date()]; ok {
			sum.add(rec)
		}
	}
	return out
}

// parseRange turns an inclusive civil date range into [start, end).
func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := calendar.DayStart(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	last, err := calendar.DayStart(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, endDate, startDate)
	}
	end := calendar.NextDayStart(last)
	if days := int(end.Sub(start) / calendar.Day); days > MaxRangeDays {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d days exceeds %d", ErrInvalidRange, days, MaxRangeDays)
	}
	return start, end, nil
}

// OptionalRange is like an inclusive range but either bound may be empty,
// which returns a zero time for that side.
func OptionalRange(startDate, endDate string) (start, end time.Time, err error) {
	if startDate != "" {
		if start, err = calendar.DayStart(startDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
		}
	}
	if endDate != "" {
		last, err := calendar.DayStart(endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
		}
		end = calendar.NextDayStart(last)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, endDate, startDate)
	}
	return start, end, nil
}

// StudentStats is one student's tally across a set of records.
type StudentStats struct {
	TotalClasses int    `json:"totalClasses"`
	Present      int    `json:"present"`
	Absent       int    `json:"absent"`
	OnDuty       int    `json:"onDuty"`
	Late         int    `json:"late"`
	SickLeave    int    `json:"sickLeave"`
	Percentage   string `json:"attendancePercentage"`
}

// ComputeStudentStats counts one registration number's entries across
// records; every FN and AN record is a separate class.
func ComputeStudentStats(regNo string, recs []Record) StudentStats {
	var st StudentStats
	for _, rec := range recs {
		e, ok := rec.Entry(regNo)
		if !ok {
			continue
		}
		st.TotalClasses++
		switch e.Status {
		case Present:
			st.Present++
		case Absent:
			st.Absent++
		case OnDuty:
			st.OnDuty++
		case Late:
			st.Late++
		case SickLeave:
			st.SickLeave++
		}
	}
	st.Percentage = FormatPercentage(AttendancePercentage(st))
	return st
}

// AttendancePercentage credits Present, On-Duty and Late and drops
// Sick-Leave from the denominator. A non-positive denominator gives zero.
func AttendancePercentage(st StudentStats) decimal.Decimal {
	attended := st.Present + st.OnDuty + st.Late
	counted := st.TotalClasses - st.SickLeave
	if counted <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(attended)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(counted)), 2)
}

// FormatPercentage renders p as "87.50%".
func FormatPercentage(p decimal.Decimal) string {
	return p.StringFixed(2) + "%"
}
