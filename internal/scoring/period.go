package scoring

import (
	"fmt"
	"time"
)

// Frequency is how often an indicator reports.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencySemester  Frequency = "semester"
	FrequencyAnnual    Frequency = "annual"
)

func ValidFrequency(f string) bool {
	switch Frequency(f) {
	case FrequencyMonthly, FrequencyQuarterly, FrequencySemester, FrequencyAnnual:
		return true
	}
	return false
}

// monthsPerBucket maps a frequency to its bucket length.
func monthsPerBucket(f Frequency) (int, error) {
	switch f {
	case FrequencyMonthly:
		return 1, nil
	case FrequencyQuarterly:
		return 3, nil
	case FrequencySemester:
		return 6, nil
	case FrequencyAnnual:
		return 12, nil
	}
	return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, f)
}

// PeriodStart normalizes t to the first day of its reporting bucket (UTC).
func PeriodStart(f Frequency, t time.Time) (time.Time, error) {
	months, err := monthsPerBucket(f)
	if err != nil {
		return time.Time{}, err
	}
	m := int(t.Month()) - 1
	m -= m % months
	return time.Date(t.Year(), time.Month(m+1), 1, 0, 0, 0, 0, time.UTC), nil
}

// PeriodEnd is the last instant of the bucket starting at start.
func PeriodEnd(f Frequency, start time.Time) (time.Time, error) {
	months, err := monthsPerBucket(f)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, months, 0).Add(-time.Nanosecond), nil
}

// PeriodsPerYear is the number of buckets a frequency has in one year.
func PeriodsPerYear(f Frequency) int {
	months, err := monthsPerBucket(f)
	if err != nil {
		return 0
	}
	return 12 / months
}

// PeriodLabel renders a bucket as 2024-03, 2024-Q1, 2024-S1 or 2024.
func PeriodLabel(f Frequency, t time.Time) string {
	m := int(t.Month())
	switch f {
	case FrequencyMonthly:
		return fmt.Sprintf("%d-%02d", t.Year(), m)
	case FrequencyQuarterly:
		return fmt.Sprintf("%d-Q%d", t.Year(), (m-1)/3+1)
	case FrequencySemester:
		return fmt.Sprintf("%d-S%d", t.Year(), (m-1)/6+1)
	default:
		return fmt.Sprintf("%d", t.Year())
	}
}
