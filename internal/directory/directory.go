// Package directory reads batch rosters owned by the student management
// system. The attendance engine never writes to it.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Student is a roster entry.
type Student struct {
	BatchID            string `json:"batch_id"`
	RegistrationNumber string `json:"registration_number"`
	StudentID          string `json:"student_id"`
	Name               string `json:"name"`
	Department         string `json:"department"`
}

// Directory lists the students of a batch.
type Directory interface {
	ListStudents(ctx context.Context, batchID string) ([]Student, error)
}

func registrationNumbers(students []Student) []string {
	out := make([]string, 0, len(students))
	for _, s := range students {
		out = append(out, s.RegistrationNumber)
	}
	return out
}

// Schema is the minimal students table the directory reads. The student
// management system owns it; this exists for local databases.
const Schema = `
CREATE TABLE IF NOT EXISTS students (
	batch_id            TEXT NOT NULL,
	registration_number TEXT NOT NULL,
	student_id          TEXT NOT NULL DEFAULT '',
	name                TEXT NOT NULL DEFAULT '',
	department          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (batch_id, registration_number)
);
`

// Postgres reads the students table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a directory backed by db.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// ListStudents returns a batch's students ordered by registration number.
func (p *Postgres) ListStudents(ctx context.Context, batchID string) ([]Student, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT batch_id, registration_number, student_id, name, department
		FROM students
		WHERE batch_id = $1
		ORDER BY registration_number
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list students for %s: %w", batchID, err)
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.BatchID, &s.RegistrationNumber, &s.StudentID, &s.Name, &s.Department); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RegistrationNumbers satisfies attendance.Roster.
func (p *Postgres) RegistrationNumbers(ctx context.Context, batchID string) ([]string, error) {
	students, err := p.ListStudents(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return registrationNumbers(students), nil
}

// Memory is an in-process directory for tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	batches map[string][]Student
}

// NewMemory seeds a directory with students.
func NewMemory(students ...Student) *Memory {
	m := &Memory{batches: make(map[string][]Student)}
	m.Add(students...)
	return m
}

// Add registers students, replacing any with the same batch and
// registration number.
func (m *Memory) Add(students ...Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range students {
		s.RegistrationNumber = strings.ToUpper(strings.TrimSpace(s.RegistrationNumber))
		list := m.batches[s.BatchID]
		replaced := false
		for i := range list {
			if list[i].RegistrationNumber == s.RegistrationNumber {
				list[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, s)
		}
		m.batches[s.BatchID] = list
	}
}

func (m *Memory) ListStudents(ctx context.Context, batchID string) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Student(nil), m.batches[batchID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationNumber < out[j].RegistrationNumber })
	return out, nil
}

// RegistrationNumbers satisfies attendance.Roster.
func (m *Memory) RegistrationNumbers(ctx context.Context, batchID string) ([]string, error) {
	students, _ := m.ListStudents(ctx, batchID)
	return registrationNumbers(students), nil
}
