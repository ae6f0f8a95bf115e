package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sessionattendance/internal/calendar"
)

// Schema creates the attendance_records table. One row per
// (batch_id, calendar_date, session); entries live in a JSONB array.
const Schema = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id            UUID PRIMARY KEY,
	batch_id      TEXT NOT NULL,
	calendar_date TIMESTAMPTZ NOT NULL,
	session       TEXT NOT NULL CHECK (session IN ('FN', 'AN')),
	marked_by     TEXT NOT NULL DEFAULT '',
	marked_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	entries       JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (batch_id, calendar_date, session)
);
CREATE INDEX IF NOT EXISTS idx_attendance_records_date ON attendance_records (calendar_date);
`

const recordColumns = `id, batch_id, calendar_date, session, marked_by, marked_at, entries, created_at`

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate applies Schema.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

// Upsert inserts an empty row for the key if none exists, then locks it
// and merges entries inside one transaction. Concurrent marks on the same
// key serialize on the row lock, so disjoint registration numbers from
// both writers survive.
func (r *Repository) Upsert(ctx context.Context, key Key, entries []Entry, markedBy string, markedAt time.Time) (Record, bool, error) {
	key.Day = calendar.Truncate(key.Day)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, false, unavailable("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (id, batch_id, calendar_date, session, marked_by, marked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (batch_id, calendar_date, session) DO NOTHING
	`, uuid.NewString(), key.BatchID, key.Day, string(key.Session), markedBy, markedAt)
	if err != nil {
		return Record{}, false, unavailable("insert record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, false, unavailable("insert record", err)
	}
	created := n == 1

	row := tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE batch_id = $1 AND calendar_date = $2 AND session = $3
		FOR UPDATE
	`, key.BatchID, key.Day, string(key.Session))
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, false, unavailable("lock record", err)
	}

	rec.Entries = MergeEntries(rec.Entries, entries)
	rec.MarkedBy = markedBy
	rec.MarkedAt = markedAt
	payload, err := json.Marshal(rec.Entries)
	if err != nil {
		return Record{}, false, fmt.Errorf("encode entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE attendance_records
		SET entries = $2, marked_by = $3, marked_at = $4
		WHERE id = $1
	`, rec.ID, string(payload), markedBy, markedAt); err != nil {
		return Record{}, false, unavailable("update record", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, false, unavailable("commit upsert", err)
	}
	return rec, created, nil
}

// FindByKey returns ErrNotFound when no row matches.
func (r *Repository) FindByKey(ctx context.Context, key Key) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE batch_id = $1 AND calendar_date = $2 AND session = $3
	`, key.BatchID, calendar.Truncate(key.Day), string(key.Session))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, unavailable("find record", err)
	}
	return rec, nil
}

func (r *Repository) FindByDateRange(ctx context.Context, batchID string, start, end time.Time) ([]Record, error) {
	var q query
	if !start.IsZero() {
		q.where("calendar_date >= $?", start)
	}
	if !end.IsZero() {
		q.where("calendar_date < $?", end)
	}
	if batchID != "" {
		q.where("batch_id = $?", batchID)
	}
	return r.list(ctx, q)
}

// FindByDates expands every day to its [start, start+24h) interval and
// matches the union of those intervals.
func (r *Repository) FindByDates(ctx context.Context, batchID string, days []time.Time) ([]Record, error) {
	if len(days) == 0 {
		return nil, nil
	}
	var q query
	ranges := make([]string, 0, len(days))
	for _, d := range days {
		ranges = append(ranges, "(calendar_date >= "+q.arg(d)+" AND calendar_date < "+q.arg(calendar.NextDayStart(d))+")")
	}
	q.clauses = append(q.clauses, "("+strings.Join(ranges, " OR ")+")")
	if batchID != "" {
		q.where("batch_id = $?", batchID)
	}
	return r.list(ctx, q)
}

func (r *Repository) list(ctx context.Context, q query) ([]Record, error) {
	stmt := `SELECT ` + recordColumns + ` FROM attendance_records`
	if len(q.clauses) > 0 {
		stmt += " WHERE " + strings.Join(q.clauses, " AND ")
	}
	stmt += " ORDER BY calendar_date, session DESC, batch_id"

	rows, err := r.db.QueryContext(ctx, stmt, q.args...)
	if err != nil {
		return nil, unavailable("list records", err)
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("scan record", err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list records", err)
	}
	return res, nil
}

// query accumulates positional WHERE clauses.
type query struct {
	clauses []string
	args    []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// where adds a clause whose single "$?" placeholder is bound to v.
func (q *query) where(clause string, v any) {
	q.clauses = append(q.clauses, strings.Replace(clause, "$?", q.arg(v), 1))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec     Record
		session string
		payload []byte
	)
	if err := s.Scan(&rec.ID, &rec.BatchID, &rec.CalendarDate, &session, &rec.MarkedBy, &rec.MarkedAt, &payload, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.Session = Session(session)
	rec.CalendarDate = rec.CalendarDate.In(calendar.Offset)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Entries); err != nil {
			return Record{}, fmt.Errorf("decode entries for %s: %w", rec.ID, err)
		}
	}
	if rec.Entries == nil {
		rec.Entries = []Entry{}
	}
	return rec, nil
}
