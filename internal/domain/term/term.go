// Package term implements trimester arithmetic for the academic calendar.
//
// A year is split into three four-month trimesters: t1 (Jan-Apr),
// t2 (May-Aug) and t3 (Sep-Dec). Terms are rendered as "t2-2025".
package term

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Index of a trimester within a year, 1..3.
const (
	T1 = 1
	T2 = 2
	T3 = 3
)

const trimestersPerYear = 3

// Term identifies one trimester of one year.
type Term struct {
	Trimester int
	Year      int
}

// Current returns the term containing the given instant.
func Current(now time.Time) Term {
	var tri int
	switch m := int(now.Month()); {
	case m <= 4:
		tri = T1
	case m <= 8:
		tri = T2
	default:
		tri = T3
	}
	return Term{Trimester: tri, Year: now.Year()}
}

// Parse converts a "t{1,2,3}-{year}" string into a Term.
// Returns ErrMalformedTerm on any other shape.
func Parse(s string) (Term, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Term{}, fmt.Errorf("%w: %q", ErrMalformedTerm, s)
	}
	if len(parts[0]) != 2 || parts[0][0] != 't' {
		return Term{}, fmt.Errorf("%w: %q", ErrMalformedTerm, s)
	}
	tri := int(parts[0][1] - '0')
	if tri < T1 || tri > T3 {
		return Term{}, fmt.Errorf("%w: %q", ErrMalformedTerm, s)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1 {
		return Term{}, fmt.Errorf("%w: %q", ErrMalformedTerm, s)
	}
	return Term{Trimester: tri, Year: year}, nil
}

// String renders the term as "t2-2025".
func (t Term) String() string {
	return fmt.Sprintf("t%d-%d", t.Trimester, t.Year)
}

// DateRange returns the inclusive boundary dates of the term in dd-mm-yyyy
// form, the format the analytics reports accept as date filters.
func (t Term) DateRange() (start, end string) {
	switch t.Trimester {
	case T1:
		return fmt.Sprintf("01-01-%d", t.Year), fmt.Sprintf("30-04-%d", t.Year)
	case T2:
		return fmt.Sprintf("01-05-%d", t.Year), fmt.Sprintf("31-08-%d", t.Year)
	default:
		return fmt.Sprintf("01-09-%d", t.Year), fmt.Sprintf("31-12-%d", t.Year)
	}
}

// Prev returns the immediately preceding term, wrapping t1 to t3 of the
// prior year.
func (t Term) Prev() Term {
	if t.Trimester == T1 {
		return Term{Trimester: T3, Year: t.Year - 1}
	}
	return Term{Trimester: t.Trimester - 1, Year: t.Year}
}

// Previous returns [t, t-1, ..., t-n] in descending chronological order.
func (t Term) Previous(n int) []Term {
	out := make([]Term, 0, n+1)
	out = append(out, t)
	cur := t
	for i := 0; i < n; i++ {
		cur = cur.Prev()
		out = append(out, cur)
	}
	return out
}

// Before reports whether t is chronologically earlier than other.
func (t Term) Before(other Term) bool {
	if t.Year != other.Year {
		return t.Year < other.Year
	}
	return t.Trimester < other.Trimester
}

// IsBoundary reports whether the given date is the first day of a
// trimester: Jan 1, May 1 or Sep 1. Full rebuilds own exactly these days.
func IsBoundary(now time.Time) bool {
	if now.Day() != 1 {
		return false
	}
	switch now.Month() {
	case time.January, time.May, time.September:
		return true
	default:
		return false
	}
}

// startOf returns the first day of the term in the given location.
func (t Term) startOf(loc *time.Location) time.Time {
	months := [...]time.Month{T1: time.January, T2: time.May, T3: time.September}
	return time.Date(t.Year, months[t.Trimester], 1, 0, 0, 0, 0, loc)
}

// Week describes one week of a term, 1-based.
type Week struct {
	Term   Term
	Number int
	Start  time.Time
	End    time.Time
}

// WeekOf returns the term week containing the given date. Week 1 starts on
// the first day of the trimester; each week spans seven days.
func WeekOf(date time.Time) Week {
	t := Current(date)
	start := t.startOf(date.Location())
	days := int(date.Sub(start).Hours() / 24)
	n := days/7 + 1
	weekStart := start.AddDate(0, 0, (n-1)*7)
	return Week{
		Term:   t,
		Number: n,
		Start:  weekStart,
		End:    weekStart.AddDate(0, 0, 6),
	}
}

// String renders the week as "t2-w5".
func (w Week) String() string {
	return fmt.Sprintf("t%d-w%d", w.Term.Trimester, w.Number)
}
