package pricing

import (
	"time"

	"pricing_service/errors"
)

const DateLayout = "2006-01-02"

// ImpactScore maps an event date to a demand impact score. The rule is
// purely day-of-week based: weekend events fill rooms, midweek ones barely
// move demand. Scores are always one of 20, 40, 60, 80, 100; a day with no
// event scores 0, which is the caller's case, not this function's.
func ImpactScore(eventDate string) (int, error) {
	parsed, err := time.Parse(DateLayout, eventDate)
	if err != nil {
		return 0, &errors.InvalidDateError{Value: eventDate}
	}

	switch parsed.Weekday() {
	case time.Friday, time.Saturday:
		return 100, nil
	case time.Sunday:
		return 80, nil
	case time.Thursday:
		return 60, nil
	case time.Wednesday:
		return 40, nil
	default:
		return 20, nil
	}
}

// CanonicalDate normalizes a date string to YYYY-MM-DD. Inputs already in
// that form pass through; RFC3339 timestamps are truncated to their date.
func CanonicalDate(value string) (string, error) {
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.Format(DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format(DateLayout), nil
	}
	return "", &errors.InvalidDateError{Value: value}
}
