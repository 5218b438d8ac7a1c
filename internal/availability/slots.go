package availability

import (
	"fmt"
	"iter"
	"time"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
)

const minutesPerDay = 24 * 60

var ErrInvalidWindow = apperr.New(apperr.KindValidation, "window must start before it ends and stay within one day")

// Window is a provider's recurring daily availability, in minutes after
// midnight UTC.
type Window struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// DefaultWindow applies to providers that never configured one.
var DefaultWindow = Window{StartMinute: 9 * 60, EndMinute: 17 * 60}

func (w Window) Validate() error {
	if w.StartMinute < 0 || w.EndMinute > minutesPerDay || w.StartMinute >= w.EndMinute {
		return ErrInvalidWindow
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartMinute/60, w.StartMinute%60, w.EndMinute/60, w.EndMinute%60)
}

// Admits reports whether iv is one of the slots Days generates for w: exactly
// slot long, inside the window on iv's UTC day, and starting a whole number
// of slots after the window start. Busy intervals and the clock are not
// considered.
func (w Window) Admits(iv Interval, slot time.Duration) bool {
	if slot <= 0 || iv.End.Sub(iv.Start) != slot {
		return false
	}
	start := iv.Start.UTC()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := day.Add(time.Duration(w.StartMinute) * time.Minute)
	windowEnd := day.Add(time.Duration(w.EndMinute) * time.Minute)

	if start.Before(windowStart) || iv.End.After(windowEnd) {
		return false
	}
	return start.Sub(windowStart)%slot == 0
}

type DaySlots struct {
	Date  string     `json:"date"`
	Slots []Interval `json:"slots"`
}

// Days yields one DaySlots per calendar day starting with now's UTC day.
// Slots that start before now, overlap a busy interval, or would run past
// the window end are left out. A day without slots is still yielded, with an
// empty list. The sequence can be ranged over more than once.
func Days(w Window, days int, slot time.Duration, now time.Time, busy []Interval) iter.Seq[DaySlots] {
	return func(yield func(DaySlots) bool) {
		if slot <= 0 {
			return
		}
		utc := now.UTC()
		first := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)

		for d := 0; d < days; d++ {
			day := first.AddDate(0, 0, d)
			windowStart := day.Add(time.Duration(w.StartMinute) * time.Minute)
			windowEnd := day.Add(time.Duration(w.EndMinute) * time.Minute)

			ds := DaySlots{
				Date:  day.Format(time.DateOnly),
				Slots: []Interval{},
			}
			for start := windowStart; !start.Add(slot).After(windowEnd); start = start.Add(slot) {
				iv := Interval{Start: start, End: start.Add(slot)}
				if iv.Start.Before(utc) || OverlapsAny(iv, busy) {
					continue
				}
				ds.Slots = append(ds.Slots, iv)
			}

			if !yield(ds) {
				return
			}
		}
	}
}
