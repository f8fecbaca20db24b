package filter

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are the accepted date spellings, most precise first.
// Clients send anything from full RFC3339 down to a bare date, with T
// or space between date and time and with or without a zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

func ParseDateTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

// precisionOf reads how exact a date string was: fractional seconds
// beat whole seconds beat minutes, down to a bare day. The answer
// drives how wide an equality filter on that value matches.
func precisionOf(dateStr string) string {
	if _, frac, found := strings.Cut(dateStr, "."); found {
		frac = strings.TrimSuffix(frac, "Z")
		if i := strings.IndexAny(frac, "+-"); i >= 0 {
			frac = frac[:i]
		}
		if len(frac) >= 6 {
			return "microseconds"
		}
		if len(frac) > 0 {
			return "milliseconds"
		}
	}

	switch strings.Count(dateStr, ":") {
	case 0:
		// Fall through to the hour/day split below.
	case 1:
		return "minute"
	default:
		return "second"
	}

	if strings.ContainsAny(dateStr, "T ") {
		return "hour"
	}
	return "day"
}

// timePrecision infers precision from a time.Time that never had a
// string form, by finding its finest non-zero component.
func timePrecision(t time.Time) string {
	switch {
	case t.Nanosecond()%int(time.Millisecond) != 0:
		return "microseconds"
	case t.Nanosecond() != 0:
		return "milliseconds"
	case t.Second() != 0:
		return "second"
	case t.Minute() != 0:
		return "minute"
	case t.Hour() != 0:
		return "hour"
	}
	return "day"
}

// precisionStep is the width of one unit at each sub-day precision.
var precisionStep = map[string]time.Duration{
	"microseconds": time.Microsecond,
	"milliseconds": time.Millisecond,
	"second":       time.Second,
	"minute":       time.Minute,
	"hour":         time.Hour,
}

// timestampBounds turns a timestamp plus its precision into the
// half-open [floor, ceiling) window an equality filter covers.
func timestampBounds(ts TimestampValue) (floor time.Time, ceiling time.Time) {
	if ts.Precision == "day" {
		y, m, d := ts.Time.Date()
		floor = time.Date(y, m, d, 0, 0, 0, 0, ts.Time.Location())
		return floor, floor.AddDate(0, 0, 1)
	}

	step, ok := precisionStep[ts.Precision]
	if !ok {
		step = time.Second
	}
	floor = ts.Time.Truncate(step)
	return floor, floor.Add(step)
}

// timestampRangeFor recognizes both value shapes a timestamp can
// arrive in, parsed TimestampValue or bare time.Time, and produces the
// equality window for either. ok is false for non-timestamp values.
func timestampRangeFor(value interface{}) (floor, ceiling time.Time, ok bool) {
	switch v := value.(type) {
	case TimestampValue:
		floor, ceiling = timestampBounds(v)
		return floor, ceiling, true
	case time.Time:
		floor, ceiling = timestampBounds(TimestampValue{Time: v, Precision: timePrecision(v)})
		return floor, ceiling, true
	}
	return time.Time{}, time.Time{}, false
}
