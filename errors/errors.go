package errors

import "fmt"

const (
	InvalidRequestFormatError = "Invalid request format"
	RecordNotFoundError       = "Record not found"
	RecordBusyError           = "Record has an adjustment in flight"
	NoRecommendationError     = "No recommendation for this date"
	ScraperUnavailableError   = "Scraper backend unavailable"
)

// InvalidDateError marks an event or check-in date that cannot be parsed.
type InvalidDateError struct {
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date: %q", e.Value)
}

// InvalidPriceError marks a price that is non-numeric or non-positive after
// normalization. Such records are excluded, never treated as zero.
type InvalidPriceError struct {
	Value string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price: %q", e.Value)
}

// PersistenceError wraps a failed or timed-out record store write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
