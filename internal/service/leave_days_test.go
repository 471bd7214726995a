package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/prabandh/portal-api/pkg/errors"
)

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeDaysSingleDay(t *testing.T) {
	days, err := ComputeDays(day("2025-01-10"), day("2025-01-10"), false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, days)
}

func TestComputeDaysHalfDay(t *testing.T) {
	days, err := ComputeDays(day("2025-01-10"), day("2025-01-10"), true)
	require.NoError(t, err)
	assert.Equal(t, 0.5, days)
}

func TestComputeDaysInclusiveRange(t *testing.T) {
	days, err := ComputeDays(day("2025-01-10"), day("2025-01-14"), false)
	require.NoError(t, err)
	assert.Equal(t, 5.0, days)
}

func TestComputeDaysHalfDayIgnoredOnRange(t *testing.T) {
	days, err := ComputeDays(day("2025-01-10"), day("2025-01-12"), true)
	require.NoError(t, err)
	assert.Equal(t, 3.0, days)
}

func TestComputeDaysInvalidRange(t *testing.T) {
	_, err := ComputeDays(day("2025-01-14"), day("2025-01-10"), false)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidRange.Code, appErr.Code)
}

func TestComputeDaysIgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)
	to := time.Date(2025, 3, 2, 0, 15, 0, 0, time.UTC)
	days, err := ComputeDays(from, to, false)
	require.NoError(t, err)
	assert.Equal(t, 2.0, days)
}
