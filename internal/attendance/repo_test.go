package attendance

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sessionattendance/internal/calendar"
)

var recordColumnNames = []string{"id", "batch_id", "calendar_date", "session", "marked_by", "marked_at", "entries", "created_at"}

// timeArg matches a time.Time argument by instant.
type timeArg time.Time

func (a timeArg) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	return ok && t.Equal(time.Time(a))
}

// entriesArg matches a JSON entries payload by registration number order.
type entriesArg []string

func (a entriesArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(s), &entries); err != nil || len(entries) != len(a) {
		return false
	}
	for i, e := range entries {
		if e.RegistrationNumber != a[i] {
			return false
		}
	}
	return true
}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func repoKey(t *testing.T) Key {
	t.Helper()
	day, err := calendar.DayStart("2025-11-20")
	if err != nil {
		t.Fatal(err)
	}
	return Key{BatchID: "cse-a", Day: day, Session: SessionFN}
}

var (
	insertStmt = regexp.QuoteMeta("INSERT INTO attendance_records")
	lockStmt   = regexp.QuoteMeta("FROM attendance_records") + ".*" + regexp.QuoteMeta("FOR UPDATE")
	updateStmt = regexp.QuoteMeta("UPDATE attendance_records")
)

func TestRepositoryUpsertCreates(t *testing.T) {
	repo, mock := newMockRepo(t)
	key := repoKey(t)
	markedAt := time.Date(2025, 11, 20, 4, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(insertStmt).
		WithArgs(sqlmock.AnyArg(), "cse-a", timeArg(key.Day), "FN", "staff-1", timeArg(markedAt)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockStmt).
		WithArgs("cse-a", timeArg(key.Day), "FN").
		WillReturnRows(sqlmock.NewRows(recordColumnNames).
			AddRow("rec-1", "cse-a", key.Day, "FN", "staff-1", markedAt, []byte("[]"), markedAt))
	mock.ExpectExec(updateStmt).
		WithArgs("rec-1", entriesArg{"A1", "A2"}, "staff-1", timeArg(markedAt)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, created, err := repo.Upsert(context.Background(), key, []Entry{
		{RegistrationNumber: "A1", Status: Present},
		{RegistrationNumber: "A2", Status: Absent},
	}, "staff-1", markedAt)
	if err != nil {
		t.Fatal(err)
	}
	if !created || rec.ID != "rec-1" || len(rec.Entries) != 2 {
		t.Fatalf("rec = %+v created = %v", rec, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRepositoryUpsertMergesExisting(t *testing.T) {
	repo, mock := newMockRepo(t)
	key := repoKey(t)
	markedAt := time.Date(2025, 11, 20, 5, 0, 0, 0, time.UTC)
	earlier := markedAt.Add(-time.Hour)
	stored := `[{"registration_number":"A1","status":"Present"},{"registration_number":"A2","status":"Present"}]`

	mock.ExpectBegin()
	mock.ExpectExec(insertStmt).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockStmt).
		WillReturnRows(sqlmock.NewRows(recordColumnNames).
			AddRow("rec-1", "cse-a", key.Day, "FN", "staff-1", earlier, []byte(stored), earlier))
	mock.ExpectExec(updateStmt).
		WithArgs("rec-1", entriesArg{"A1", "A2", "A3"}, "staff-2", timeArg(markedAt)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, created, err := repo.Upsert(context.Background(), key, []Entry{
		{RegistrationNumber: "A2", Status: Absent},
		{RegistrationNumber: "A3", Status: Late},
	}, "staff-2", markedAt)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("existing row reported as created")
	}
	if e, _ := rec.Entry("A2"); e.Status != Absent {
		t.Fatalf("A2 = %+v", e)
	}
	if rec.MarkedBy != "staff-2" || !rec.MarkedAt.Equal(markedAt) || !rec.CreatedAt.Equal(earlier) {
		t.Fatalf("rec = %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRepositoryUpsertWrapsFailures(t *testing.T) {
	cause := errors.New("connection reset")
	cases := map[string]func(mock sqlmock.Sqlmock){
		"begin": func(mock sqlmock.Sqlmock) {
			mock.ExpectBegin().WillReturnError(cause)
		},
		"insert": func(mock sqlmock.Sqlmock) {
			mock.ExpectBegin()
			mock.ExpectExec(insertStmt).WillReturnError(cause)
			mock.ExpectRollback()
		},
		"update": func(mock sqlmock.Sqlmock) {
			mock.ExpectBegin()
			mock.ExpectExec(insertStmt).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(lockStmt).WillReturnRows(sqlmock.NewRows(recordColumnNames).
				AddRow("rec-1", "cse-a", time.Now(), "FN", "", time.Now(), []byte("[]"), time.Now()))
			mock.ExpectExec(updateStmt).WillReturnError(cause)
			mock.ExpectRollback()
		},
		"commit": func(mock sqlmock.Sqlmock) {
			mock.ExpectBegin()
			mock.ExpectExec(insertStmt).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(lockStmt).WillReturnRows(sqlmock.NewRows(recordColumnNames).
				AddRow("rec-1", "cse-a", time.Now(), "FN", "", time.Now(), []byte("[]"), time.Now()))
			mock.ExpectExec(updateStmt).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit().WillReturnError(cause)
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			setup(mock)
			_, _, err := repo.Upsert(context.Background(), repoKey(t), []Entry{{RegistrationNumber: "A1", Status: Present}}, "", time.Now())
			if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
				t.Fatalf("err = %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestRepositoryFindByKeyNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records")).
		WithArgs("cse-a", sqlmock.AnyArg(), "FN").
		WillReturnRows(sqlmock.NewRows(recordColumnNames))
	if _, err := repo.FindByKey(context.Background(), repoKey(t)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRepositoryFindByDatesBindsIntervals(t *testing.T) {
	repo, mock := newMockRepo(t)
	d1, _ := calendar.DayStart("2025-11-18")
	d2, _ := calendar.DayStart("2025-11-20")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ((calendar_date >= $1 AND calendar_date < $2) OR (calendar_date >= $3 AND calendar_date < $4)) AND batch_id = $5 ORDER BY calendar_date, session DESC, batch_id")).
		WithArgs(timeArg(d1), timeArg(d1.Add(24*time.Hour)), timeArg(d2), timeArg(d2.Add(24*time.Hour)), "cse-a").
		WillReturnRows(sqlmock.NewRows(recordColumnNames).
			AddRow("rec-1", "cse-a", d1, "FN", "s", d1, []byte(`[{"registration_number":"A1","status":"Present"}]`), d1))
	recs, err := repo.FindByDates(context.Background(), "cse-a", []time.Time{d1, d2})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Date() != "2025-11-18" || len(recs[0].Entries) != 1 {
		t.Fatalf("recs = %+v", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRepositoryFindByDateRangeOpenBounds(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records ORDER BY")).
		WillReturnRows(sqlmock.NewRows(recordColumnNames))
	recs, err := repo.FindByDateRange(context.Background(), "", time.Time{}, time.Time{})
	if err != nil || len(recs) != 0 {
		t.Fatalf("recs = %v, err = %v", recs, err)
	}

	mock.ExpectQuery("FROM attendance_records").WillReturnError(errors.New("down"))
	if _, err := repo.FindByDateRange(context.Background(), "", time.Time{}, time.Time{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
