// Package calendar maps civil dates to day boundaries in the fixed UTC+5:30
// offset used for every attendance record.
package calendar

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Layout is the civil date wire format.
const Layout = "2006-01-02"

// Day is the length of one calendar day in the fixed offset.
const Day = 24 * time.Hour

// Offset is the single timezone all day boundaries are computed in.
var Offset = time.FixedZone("IST", 5*60*60+30*60)

// ErrInvalidDateFormat is returned when a civil date does not parse.
var ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")

// DayStart returns the instant of midnight for a YYYY-MM-DD civil date.
// Only zero-padded digits are accepted, so CivilDate(DayStart(s)) == s.
func DayStart(civil string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(civil), "-")
	if len(parts) != 3 {
		return time.Time{}, ErrInvalidDateFormat
	}
	var nums [3]int
	for i, p := range parts {
		if len(p) != fieldWidths[i] || !digitsOnly(p) {
			return time.Time{}, ErrInvalidDateFormat
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return time.Time{}, ErrInvalidDateFormat
		}
		nums[i] = n
	}
	t := time.Date(nums[0], time.Month(nums[1]), nums[2], 0, 0, 0, 0, Offset)
	// time.Date normalizes 2025-02-30 into March; treat that as malformed.
	if t.Year() != nums[0] || int(t.Month()) != nums[1] || t.Day() != nums[2] {
		return time.Time{}, ErrInvalidDateFormat
	}
	return t, nil
}

var fieldWidths = [3]int{4, 2, 2}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CivilDate shifts an instant into the fixed offset and truncates it to its date.
func CivilDate(t time.Time) string {
	return t.In(Offset).Format(Layout)
}

// NextDayStart returns the start of the following calendar day.
func NextDayStart(t time.Time) time.Time {
	return t.Add(Day)
}

// Truncate returns the start of the calendar day containing t.
func Truncate(t time.Time) time.Time {
	local := t.In(Offset)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Offset)
}

// Today returns the civil date of now in the fixed offset.
func Today(now time.Time) string {
	return CivilDate(now)
}

// DayRange returns the half-open interval [start, end) covering a civil date.
func DayRange(civil string) (start, end time.Time, err error) {
	start, err = DayStart(civil)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, NextDayStart(start), nil
}

// Contains reports whether t falls on the day beginning at dayStart.
func Contains(dayStart, t time.Time) bool {
	return !t.Before(dayStart) && t.Before(NextDayStart(dayStart))
}
