package schedule

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// Resolver turns possibly year-less date/time pairs into absolute instants in
// the practice's operating timezone.
type Resolver struct {
	loc *time.Location
}

// ErrMalformedDate reports a date spec that is not YYYY-MM-DD or MM-DD.
var ErrMalformedDate = errors.New("schedule: malformed date")

// ErrMalformedTime reports a time spec that is not 24-hour HH:MM.
var ErrMalformedTime = errors.New("schedule: malformed time")

var (
	fullDateRe    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	partialDateRe = regexp.MustCompile(`^(\d{2})-(\d{2})$`)
	clockRe       = regexp.MustCompile(`^(\d{2}):(\d{2})$`)
)

// NewResolver creates a resolver operating in the given location.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// Location returns the resolver's operating timezone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve parses dateSpec ("YYYY-MM-DD" or "MM-DD") and timeSpec ("HH:MM",
// 24-hour) into an instant in the operating timezone. When the year is
// omitted, the year of now is substituted; if the resulting instant is
// strictly before now, it rolls forward one year so a year-less request never
// lands in the past. Resolution of an already fully-qualified date is
// idempotent: the explicit year is used as-is.
func (r *Resolver) Resolve(dateSpec, timeSpec string, now time.Time) (time.Time, error) {
	hour, minute, err := parseClock(timeSpec)
	if err != nil {
		return time.Time{}, err
	}

	now = now.In(r.loc)

	if m := fullDateRe.FindStringSubmatch(dateSpec); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return r.makeDate(year, month, day, hour, minute)
	}

	m := partialDateRe.FindStringSubmatch(dateSpec)
	if m == nil {
		return time.Time{}, ErrMalformedDate
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])

	t, err := r.makeDate(now.Year(), month, day, hour, minute)
	if err != nil {
		return time.Time{}, err
	}
	if t.Before(now) {
		t, err = r.makeDate(now.Year()+1, month, day, hour, minute)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t, nil
}

// makeDate builds the instant and rejects impossible calendar dates, which
// time.Date would otherwise normalize (e.g. 02-31 becoming March 3rd).
func (r *Resolver) makeDate(year, month, day, hour, minute int) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, ErrMalformedDate
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, r.loc)
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, ErrMalformedDate
	}
	return t, nil
}

func parseClock(timeSpec string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(timeSpec)
	if m == nil {
		return 0, 0, ErrMalformedTime
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, ErrMalformedTime
	}
	return hour, minute, nil
}
