package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a daily open interval, minutes since midnight, [Open, Close).
type Window struct {
	Open  int
	Close int
}

// WeeklyHours maps each weekday to its open window. A missing entry means
// closed all day.
type WeeklyHours map[time.Weekday]Window

// ErrOutsideBusinessHours reports that a requested instant falls outside the
// configured weekly schedule. The caller decides whether to search forward;
// the literal request is never silently moved.
type ErrOutsideBusinessHours struct {
	Instant time.Time
}

func (e *ErrOutsideBusinessHours) Error() string {
	return fmt.Sprintf("schedule: %s is outside business hours", e.Instant.Format("Mon 15:04"))
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeeklyHours parses a schedule string such as
// "Mon-Fri 08:00-18:00, Sat 08:00-12:00". Days absent from the string are
// closed. Day ranges wrap in calendar order (Sun..Sat); times are 24-hour.
func ParseWeeklyHours(spec string) (WeeklyHours, error) {
	hours := WeeklyHours{}
	for _, clause := range strings.Split(spec, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		fields := strings.Fields(clause)
		if len(fields) != 2 {
			return nil, fmt.Errorf("schedule: malformed clause %q", clause)
		}

		days, err := parseDayRange(fields[0])
		if err != nil {
			return nil, err
		}
		window, err := parseWindow(fields[1])
		if err != nil {
			return nil, fmt.Errorf("schedule: clause %q: %w", clause, err)
		}
		for _, d := range days {
			hours[d] = window
		}
	}
	if len(hours) == 0 {
		return nil, fmt.Errorf("schedule: no opening hours in %q", spec)
	}
	return hours, nil
}

func parseDayRange(s string) ([]time.Weekday, error) {
	parts := strings.SplitN(strings.ToLower(s), "-", 2)
	first, ok := weekdayNames[parts[0]]
	if !ok {
		return nil, fmt.Errorf("schedule: unknown day %q", parts[0])
	}
	if len(parts) == 1 {
		return []time.Weekday{first}, nil
	}
	last, ok := weekdayNames[parts[1]]
	if !ok {
		return nil, fmt.Errorf("schedule: unknown day %q", parts[1])
	}

	days := []time.Weekday{first}
	for d := first; d != last; {
		d = (d + 1) % 7
		days = append(days, d)
		if len(days) > 7 {
			break
		}
	}
	return days, nil
}

func parseWindow(s string) (Window, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("malformed window %q", s)
	}
	open, err := minutesOfDay(parts[0])
	if err != nil {
		return Window{}, err
	}
	closeAt, err := minutesOfDay(parts[1])
	if err != nil {
		return Window{}, err
	}
	if closeAt <= open {
		return Window{}, fmt.Errorf("window %q closes before it opens", s)
	}
	return Window{Open: open, Close: closeAt}, nil
}

func minutesOfDay(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("malformed hour %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("malformed minute %q", parts[1])
	}
	return h*60 + m, nil
}

// Contains reports whether the slot [start, start+duration) fits entirely
// inside the day's open window.
func (h WeeklyHours) Contains(start time.Time, duration time.Duration) bool {
	window, open := h[start.Weekday()]
	if !open {
		return false
	}
	startMin := start.Hour()*60 + start.Minute()
	endMin := startMin + int(duration.Minutes())
	return startMin >= window.Open && endMin <= window.Close
}

// Check returns an ErrOutsideBusinessHours when the slot does not fit the
// schedule, nil otherwise.
func (h WeeklyHours) Check(start time.Time, duration time.Duration) error {
	if !h.Contains(start, duration) {
		return &ErrOutsideBusinessHours{Instant: start}
	}
	return nil
}

// NextOpening returns the earliest instant at or after from where a slot of
// the given duration fits the schedule, advancing in whole-duration steps.
// maxProbes bounds the search; ok is false when the budget runs out.
func (h WeeklyHours) NextOpening(from time.Time, duration time.Duration, maxProbes int) (time.Time, bool) {
	t := from
	for i := 0; i < maxProbes; i++ {
		if h.Contains(t, duration) {
			return t, true
		}
		t = h.advance(t, duration)
	}
	return time.Time{}, false
}

// advance moves to the next candidate slot start: the next duration step
// inside an open window, skipping directly to the next day's opening when the
// current day is closed or already past closing.
func (h WeeklyHours) advance(t time.Time, duration time.Duration) time.Time {
	window, open := h[t.Weekday()]
	minute := t.Hour()*60 + t.Minute()

	if open && minute < window.Open {
		return t.Truncate(time.Minute).Add(time.Duration(window.Open-minute) * time.Minute)
	}
	if open && minute+int(duration.Minutes()) < window.Close {
		return t.Add(duration)
	}

	// Past closing, or day is closed entirely: jump to the next day's opening
	// (or midnight when that day is closed, letting the next probe skip it).
	next := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	if w, ok := h[next.Weekday()]; ok {
		return next.Add(time.Duration(w.Open) * time.Minute)
	}
	return next
}
