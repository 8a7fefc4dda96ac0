package cleaning

import (
	"sort"
	"strings"
	"time"
)

// strictDateLayout is tried over the whole column before anything else.
const strictDateLayout = "02/01/2006"

// 日付は常に日→月の順で解釈する
var dateLayouts = []string{
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2006-01-02",
	"2006/01/02",
	"2/1/06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"3:04:05PM",
	"3:04PM",
	"15.04",
}

// parseDates parses a text column into timestamps. It reports the index of
// the first cell that could not be parsed, or -1. Cells for which skip
// returns true stay zero.
func parseDates(values []string, skip func(i int) bool) ([]time.Time, int) {
	out := make([]time.Time, len(values))

	strict := true
	for i, v := range values {
		if skip(i) {
			continue
		}
		t, err := time.Parse(strictDateLayout, strings.TrimSpace(v))
		if err != nil {
			strict = false
			break
		}
		out[i] = t
	}
	if strict {
		return out, -1
	}

	for i, v := range values {
		if skip(i) {
			out[i] = time.Time{}
			continue
		}
		t, ok := parseWithLayouts(strings.TrimSpace(v), append([]string{strictDateLayout}, dateLayouts...))
		if !ok {
			return nil, i
		}
		out[i] = t
	}
	return out, -1
}

// parseClock returns the offset from midnight for a time-of-day cell.
func parseClock(v string) (time.Duration, bool) {
	t, ok := parseWithLayouts(strings.ToUpper(strings.TrimSpace(v)), timeLayouts)
	if !ok {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, true
}

func parseWithLayouts(v string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// medianTime returns the median of the non-zero timestamps, truncated to the day.
func medianTime(values []time.Time) time.Time {
	var present []time.Time
	for _, t := range values {
		if !t.IsZero() {
			present = append(present, t)
		}
	}
	if len(present) == 0 {
		return time.Time{}
	}
	sort.Slice(present, func(i, j int) bool { return present[i].Before(present[j]) })
	mid := present[len(present)/2]
	if len(present)%2 == 0 {
		lo := present[len(present)/2-1]
		mid = lo.Add(mid.Sub(lo) / 2)
	}
	return mid.Truncate(24 * time.Hour)
}
