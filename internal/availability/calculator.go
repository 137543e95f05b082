// Package availability computes bookable time slots for a doctor and day,
// bounded by clinic business hours and already-booked intervals.
package availability

import (
	"fmt"
	"time"
)

// DayHours bounds one weekday's bookable window as "HH:MM" clock values.
// A zero value means the clinic is closed that weekday.
type DayHours struct {
	Open  string
	Close string
}

// Closed reports whether the day has no bookable window.
func (h DayHours) Closed() bool {
	return h.Open == "" || h.Close == ""
}

// WeeklyHours maps each weekday to its business hours.
type WeeklyHours map[time.Weekday]DayHours

// UniformWeek builds a schedule with the same hours every day except the
// listed closed weekdays.
func UniformWeek(open, close string, closedDays []time.Weekday) WeeklyHours {
	hours := make(WeeklyHours, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[d] = DayHours{Open: open, Close: close}
	}
	for _, d := range closedDays {
		hours[d] = DayHours{}
	}
	return hours
}

// Busy is an occupied half-open interval [Start, End) in minutes from
// midnight.
type Busy struct {
	Start int
	End   int
}

// Overlaps applies the half-open interval test: the intervals intersect iff
// startA < endB and startB < endA. Equality of boundaries is not an overlap,
// so back-to-back slots are both bookable.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// Calculator produces free slot start times on the business-hour grid.
type Calculator struct {
	hours    WeeklyHours
	slotMins int
	minLead  time.Duration
	loc      *time.Location
	now      func() time.Time
}

// New builds a calculator. slotMins is both the grid granularity and the
// assumed duration of a new booking; minLead excludes slots starting sooner
// than now+minLead on the current day.
func New(hours WeeklyHours, slotMins int, minLead time.Duration, loc *time.Location) *Calculator {
	if slotMins <= 0 {
		slotMins = 30
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{
		hours:    hours,
		slotMins: slotMins,
		minLead:  minLead,
		loc:      loc,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (c *Calculator) WithNow(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Slots returns the ordered free slot starts ("HH:MM") for the date given the
// busy intervals already booked. A closed weekday yields an empty result, not
// an error.
func (c *Calculator) Slots(date string, busy []Busy) ([]string, error) {
	day, err := time.ParseInLocation("2006-01-02", date, c.loc)
	if err != nil {
		return nil, fmt.Errorf("availability: parse date %q: %w", date, err)
	}

	hours, ok := c.hours[day.Weekday()]
	if !ok || hours.Closed() {
		return nil, nil
	}
	open, err := ParseClock(hours.Open)
	if err != nil {
		return nil, err
	}
	close, err := ParseClock(hours.Close)
	if err != nil {
		return nil, err
	}

	// On the current day, slots starting before now+minLead are gone.
	earliest := -1
	now := c.now().In(c.loc)
	if sameDay(day, now) {
		cutoff := now.Add(c.minLead)
		if sameDay(day, cutoff) {
			earliest = cutoff.Hour()*60 + cutoff.Minute()
		} else {
			// Cutoff rolled past midnight; nothing today is bookable.
			earliest = 24 * 60
		}
	} else if day.Before(now.Truncate(24 * time.Hour)) {
		earliest = 24 * 60
	}

	var slots []string
	for start := open; start+c.slotMins <= close; start += c.slotMins {
		if start < earliest {
			continue
		}
		end := start + c.slotMins
		free := true
		for _, b := range busy {
			if Overlaps(start, end, b.Start, b.End) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, FormatClock(start))
		}
	}
	return slots, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
