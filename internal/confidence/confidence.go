// Package confidence implements the calibration heuristic mapping a stay
// date and history depth to a [0,1] confidence score, per spec.md §4.F.
package confidence

import (
	"math"
	"time"
)

const (
	baseline = 0.80
	neutral  = 0.5
)

// Score computes confidence for a stay_date and an optional history_days
// (nil when history depth is unknown). now is passed explicitly so the
// horizon calculation is deterministic and testable.
func Score(now, stayDate time.Time, historyDays *int) float64 {
	if stayDate.IsZero() {
		return neutral
	}

	today := truncateDay(now)
	day := truncateDay(stayDate)

	if day.Before(today) {
		return 0.0
	}

	score := baseline

	d := int(day.Sub(today).Hours() / 24)
	switch {
	case d > 180:
		score -= 0.30
	case d > 90:
		score -= 0.15
	case d < 7:
		score += 0.05
	}

	if historyDays != nil {
		h := *historyDays
		switch {
		case h < 30:
			score -= 0.30
		case h < 90:
			score -= 0.10
		case h > 365:
			score += 0.05
		}
	}

	return round2(clamp(score, 0, 1))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
