package calculator

import (
	"fmt"
	"time"
)

// DefaultRatePerDay is the flat overdue fine charged per day a book is out.
const DefaultRatePerDay = 0.50

// Day is the length of one fine day.
const Day = 24 * time.Hour

// Fine represents the calculated fine for one checkout.
type Fine struct {
	Days       float64 // Fractional days elapsed since checkout
	RatePerDay float64
	Amount     float64 // Days × RatePerDay
}

// CalculateFine computes the fine for a checkout made at checkedOutAt, as
// seen at now.
// Based on the rule: amount = rate_per_day × ((now - checked_out_at) / 24h)
//
// Days are fractional. The amount is neither capped nor floored, so a
// checkout timestamp in the future yields a negative fine.
func CalculateFine(checkedOutAt, now time.Time, ratePerDay float64) (Fine, error) {
	if ratePerDay < 0 {
		return Fine{}, fmt.Errorf("rate per day cannot be negative: %v", ratePerDay)
	}

	days := ElapsedDays(checkedOutAt, now)

	return Fine{
		Days:       days,
		RatePerDay: ratePerDay,
		Amount:     days * ratePerDay,
	}, nil
}

// ElapsedDays returns the fractional number of days between from and to.
// The result is negative when to is before from.
func ElapsedDays(from, to time.Time) float64 {
	return float64(to.Sub(from)) / float64(Day)
}
