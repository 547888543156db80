package message

import (
	"iter"
	"math"
	"slices"
	"time"
)

// DayGroup is a run of messages sent on the same calendar day.
type DayGroup struct {
	Day      time.Time // midnight, in the grouping location
	Messages []Message
}

// Days yields the contiguous same-day runs of msgs (sorted oldest first), computed in loc
// (time.Local when nil). The sequence is lazy and can be ranged over any number of times.
func Days(msgs []Message, loc *time.Location) iter.Seq[DayGroup] {
	if loc == nil {
		loc = time.Local
	}
	return func(yield func(DayGroup) bool) {
		var (
			cur   time.Time
			start int
		)
		for i, msg := range msgs {
			day := truncateDay(msg.Timestamp, loc)
			if i == 0 {
				cur = day
				continue
			}
			if !day.Equal(cur) {
				if !yield(DayGroup{Day: cur, Messages: msgs[start:i:i]}) {
					return
				}
				cur, start = day, i
			}
		}
		if len(msgs) > 0 {
			yield(DayGroup{Day: cur, Messages: msgs[start:]})
		}
	}
}

// GroupByDay collects Days.
func GroupByDay(msgs []Message, loc *time.Location) []DayGroup {
	return slices.Collect(Days(msgs, loc))
}

// DayLabel is the section header of a day group, relative to now.
func DayLabel(day, now time.Time) string {
	today := truncateDay(now, now.Location())
	day = truncateDay(day, now.Location())
	switch diff := int(math.Round(today.Sub(day).Hours() / 24)); {
	case diff == 0:
		return "Today"
	case diff == 1:
		return "Yesterday"
	case diff > 1 && diff < 7:
		return day.Weekday().String()
	default:
		return day.Format("2 January 2006")
	}
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
