package pricing

import (
	"fmt"
	"time"

	"carrental-backend/internal/domain"
)

const DateLayout = "2006-01-02"

// ParseDate converts a yyyy-mm-dd string into midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-mm-dd: %w", s, domain.ErrValidation)
	}
	return t.UTC(), nil
}

// ParseInterval parses a rental window given as calendar dates. The end date
// is exclusive: 2024-01-10 to 2024-01-15 is five rental days.
func ParseInterval(start, end string) (domain.Interval, error) {
	s, err := ParseDate(start)
	if err != nil {
		return domain.Interval{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return domain.Interval{}, err
	}
	return domain.NewInterval(s, e)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
