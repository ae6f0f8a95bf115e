package report

import (
	"context"
	"errors"
	"fmt"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/directory"
)

// Exporter loads a batch's roster and records and projects them.
type Exporter struct {
	store    attendance.Store
	students directory.Directory
}

// NewExporter creates an exporter.
func NewExporter(store attendance.Store, students directory.Directory) *Exporter {
	return &Exporter{store: store, students: students}
}

// Export builds the report for batchID over the inclusive civil date
// range. Either bound may be empty.
func (e *Exporter) Export(ctx context.Context, batchID, startDate, endDate string) (Report, error) {
	if batchID == "" {
		return Report{}, attendance.ErrBatchRequired
	}
	start, end, err := attendance.OptionalRange(startDate, endDate)
	if err != nil {
		return Report{}, err
	}
	students, err := e.students.ListStudents(ctx, batchID)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", attendance.ErrStoreUnavailable, err)
	}
	recs, err := e.store.FindByDateRange(ctx, batchID, start, end)
	if err != nil && !errors.Is(err, attendance.ErrNotFound) {
		return Report{}, err
	}
	return Project(batchID, students, recs), nil
}
