// Package report flattens attendance into one row per student with a
// status column pair per date.
package report

import (
	"sort"
	"strconv"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/directory"
)

var (
	IdentityColumns = []string{"Registration Number", "Student Name", "Department"}
	SummaryColumns  = []string{"Total Classes", "Present", "Absent", "On-Duty", "Late", "Sick-Leave", "Attendance %"}
)

// Row is one student's line of the report. Cells holds an FN and an AN
// status per report date; an unmarked session is an empty string.
type Row struct {
	RegistrationNumber string                  `json:"registration_number"`
	StudentName        string                  `json:"student_name"`
	Department         string                  `json:"department"`
	Cells              []string                `json:"cells"`
	Stats              attendance.StudentStats `json:"stats"`
}

// Report is the denormalized export of a batch.
type Report struct {
	BatchID string   `json:"batch_id"`
	Dates   []string `json:"dates"`
	Rows    []Row    `json:"rows"`
}

// Header returns the column names in table order.
func (r Report) Header() []string {
	h := make([]string, 0, len(IdentityColumns)+2*len(r.Dates)+len(SummaryColumns))
	h = append(h, IdentityColumns...)
	for _, d := range r.Dates {
		h = append(h, d+" FN", d+" AN")
	}
	return append(h, SummaryColumns...)
}

// Table returns the header followed by every row as strings.
func (r Report) Table() [][]string {
	out := make([][]string, 0, len(r.Rows)+1)
	out = append(out, r.Header())
	for _, row := range r.Rows {
		line := make([]string, 0, len(IdentityColumns)+len(row.Cells)+len(SummaryColumns))
		line = append(line, row.RegistrationNumber, row.StudentName, row.Department)
		line = append(line, row.Cells...)
		st := row.Stats
		line = append(line,
			strconv.Itoa(st.TotalClasses),
			strconv.Itoa(st.Present),
			strconv.Itoa(st.Absent),
			strconv.Itoa(st.OnDuty),
			strconv.Itoa(st.Late),
			strconv.Itoa(st.SickLeave),
			st.Percentage,
		)
		out = append(out, line)
	}
	return out
}

// Project builds the report for batchID. Records from other batches are
// ignored. Every student gets exactly one row, ordered by registration
// number, whether or not they were ever marked.
func Project(batchID string, students []directory.Student, recs []attendance.Record) Report {
	var own []attendance.Record
	bySlot := make(map[string]attendance.Record)
	dateSet := make(map[string]bool)
	for _, rec := range recs {
		if batchID != "" && rec.BatchID != batchID {
			continue
		}
		own = append(own, rec)
		date := rec.Date()
		dateSet[date] = true
		bySlot[date+"|"+string(rec.Session)] = rec
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	rep := Report{BatchID: batchID, Dates: dates, Rows: make([]Row, 0, len(students))}
	seen := make(map[string]bool, len(students))
	for _, s := range students {
		regNo := attendance.NormalizeRegistrationNumber(s.RegistrationNumber)
		if seen[regNo] {
			continue
		}
		seen[regNo] = true
		row := Row{
			RegistrationNumber: regNo,
			StudentName:        s.Name,
			Department:         s.Department,
			Cells:              make([]string, 0, 2*len(dates)),
			Stats:              attendance.ComputeStudentStats(regNo, own),
		}
		for _, d := range dates {
			for _, session := range attendance.Sessions {
				cell := ""
				if rec, ok := bySlot[d+"|"+string(session)]; ok {
					if e, ok := rec.Entry(regNo); ok {
						cell = string(e.Status)
					}
				}
				row.Cells = append(row.Cells, cell)
			}
		}
		rep.Rows = append(rep.Rows, row)
	}
	sort.Slice(rep.Rows, func(i, j int) bool {
		return rep.Rows[i].RegistrationNumber < rep.Rows[j].RegistrationNumber
	})
	return rep
}

// FileName is the suggested download name for a report.
func FileName(r Report, ext string, startDate, endDate string) string {
	name := "attendance_" + r.BatchID
	if startDate != "" {
		name += "_" + startDate
	}
	if endDate != "" {
		name += "_" + endDate
	}
	if startDate == "" && endDate == "" && len(r.Dates) > 0 {
		name += "_" + r.Dates[0] + "_" + r.Dates[len(r.Dates)-1]
	}
	return name + "." + ext
}
