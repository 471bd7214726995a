package service

import (
	"time"

	appErrors "github.com/prabandh/portal-api/pkg/errors"
)

// ComputeDays returns the chargeable day count for an inclusive date range.
// A half-day application on a single date counts 0.5; across multiple days
// the half-day flag has no numeric effect (upstream portal behavior, kept
// for parity).
func ComputeDays(from, to time.Time, isHalfDay bool) (float64, error) {
	from = truncateToDay(from)
	to = truncateToDay(to)

	if to.Before(from) {
		return 0, appErrors.ErrInvalidRange
	}
	if isHalfDay && from.Equal(to) {
		return 0.5, nil
	}
	return float64(to.Sub(from)/(24*time.Hour)) + 1, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
