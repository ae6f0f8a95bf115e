package directory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var requiredColumns = []string{"batch_id", "registration_number"}

// LoadCSV reads students from a CSV whose header names columns from
// batch_id, registration_number, student_id, name and department, in any
// order. batch_id and registration_number are required on every row.
func LoadCSV(r io.Reader) ([]Student, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("roster csv: missing header")
		}
		return nil, fmt.Errorf("roster csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("roster csv: missing %s column", col)
		}
	}
	field := func(rec []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Student
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("roster csv: %w", err)
		}
		s := Student{
			BatchID:            field(rec, "batch_id"),
			RegistrationNumber: field(rec, "registration_number"),
			StudentID:          field(rec, "student_id"),
			Name:               field(rec, "name"),
			Department:         field(rec, "department"),
		}
		if s.BatchID == "" || s.RegistrationNumber == "" {
			return nil, fmt.Errorf("roster csv line %d: batch_id and registration_number are required", line)
		}
		out = append(out, s)
	}
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(path string) ([]Student, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCSV(f)
}
