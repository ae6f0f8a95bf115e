package attendance

import (
	"fmt"
	"strings"
	"time"

	"sessionattendance/internal/calendar"
)

// Session is one of the two daily attendance windows.
type Session string

const (
	SessionFN Session = "FN"
	SessionAN Session = "AN"
)

// Sessions lists the sessions in display order.
var Sessions = []Session{SessionFN, SessionAN}

// ParseSession accepts FN or AN in any case.
func ParseSession(s string) (Session, error) {
	switch Session(strings.ToUpper(strings.TrimSpace(s))) {
	case SessionFN:
		return SessionFN, nil
	case SessionAN:
		return SessionAN, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSession, s)
}

// Status is a student's outcome for one session.
type Status string

const (
	Present   Status = "Present"
	Absent    Status = "Absent"
	OnDuty    Status = "On-Duty"
	Late      Status = "Late"
	SickLeave Status = "Sick-Leave"
)

var statusByToken = map[string]Status{
	"present":   Present,
	"absent":    Absent,
	"onduty":    OnDuty,
	"late":      Late,
	"sickleave": SickLeave,
}

// ParseStatus maps a submitted label onto the closed set of statuses.
// Case, spaces, hyphens and underscores are ignored, so "on duty" and
// "ON_DUTY" both yield OnDuty.
func ParseStatus(s string) (Status, error) {
	token := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
	if st, ok := statusByToken[token]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// NormalizeRegistrationNumber trims and upper-cases a registration number.
func NormalizeRegistrationNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Entry is one student's recorded status within a record.
type Entry struct {
	RegistrationNumber string `json:"registration_number"`
	StudentID          string `json:"student_id"`
	StudentName        string `json:"student_name"`
	Status             Status `json:"status"`
	Reason             string `json:"reason,omitempty"`
}

// Record holds every entry for one (batch, day, session).
type Record struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batch_id"`
	CalendarDate time.Time `json:"calendar_date"`
	Session      Session   `json:"session"`
	MarkedBy     string    `json:"marked_by"`
	MarkedAt     time.Time `json:"marked_at"`
	Entries      []Entry   `json:"entries"`
	CreatedAt    time.Time `json:"created_at"`
}

// Date returns the record's civil date.
func (r Record) Date() string {
	return calendar.CivilDate(r.CalendarDate)
}

// Entry returns the entry for a registration number, if any.
func (r Record) Entry(regNo string) (Entry, bool) {
	regNo = NormalizeRegistrationNumber(regNo)
	for _, e := range r.Entries {
		if NormalizeRegistrationNumber(e.RegistrationNumber) == regNo {
			return e, true
		}
	}
	return Entry{}, false
}

// Key identifies a record.
type Key struct {
	BatchID string
	Day     time.Time
	Session Session
}

func (k Key) String() string {
	return k.BatchID + "|" + calendar.CivilDate(k.Day) + "|" + string(k.Session)
}

// Submission is one raw per-student status as submitted by a marker.
type Submission struct {
	RegistrationNumber string `json:"registration_number"`
	StudentID          string `json:"student_id"`
	StudentName        string `json:"student_name"`
	Status             string `json:"status"`
	Reason             string `json:"reason,omitempty"`
}

// toEntry validates a submission and builds the entry stored for it.
func (s Submission) toEntry() (Entry, error) {
	regNo := NormalizeRegistrationNumber(s.RegistrationNumber)
	if regNo == "" {
		return Entry{}, ErrRegistrationRequired
	}
	st, err := ParseStatus(s.Status)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		RegistrationNumber: regNo,
		StudentID:          strings.TrimSpace(s.StudentID),
		StudentName:        strings.TrimSpace(s.StudentName),
		Status:             st,
	}
	if st == OnDuty {
		e.Reason = strings.TrimSpace(s.Reason)
	}
	return e, nil
}
