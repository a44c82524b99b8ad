// Package momentum derives streaks and relapse signals from completion
// history. Streaks are always recomputed from recorded days, never cached.
package momentum

import (
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

const dayFormat = "2006-01-02"

// StreakFromDays computes current and best streaks from a set of completion
// days (YYYY-MM-DD, any order, duplicates allowed).
//
// The current streak is the consecutive-day run ending yesterday; an entry
// for today extends it but its absence does not break it while the day is
// still open. The best streak is the longest run anywhere in history.
func StreakFromDays(days []string, now time.Time) types.StreakStats {
	if len(days) == 0 {
		return types.StreakStats{}
	}

	seen := make(map[string]bool, len(days))
	var dates []time.Time
	for _, d := range days {
		if seen[d] {
			continue
		}
		t, err := time.Parse(dayFormat, d)
		if err != nil {
			continue
		}
		seen[d] = true
		dates = append(dates, t)
	}
	if len(dates) == 0 {
		return types.StreakStats{}
	}

	sortDates(dates)

	// Best streak: longest consecutive run.
	best, run := 1, 1
	for i := 1; i < len(dates); i++ {
		if dates[i].Sub(dates[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}

	// Current streak: walk back day by day from today or yesterday.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cursor := today
	if !seen[cursor.Format(dayFormat)] {
		cursor = cursor.Add(-24 * time.Hour)
	}
	current := 0
	for seen[cursor.Format(dayFormat)] {
		current++
		cursor = cursor.Add(-24 * time.Hour)
	}

	return types.StreakStats{CurrentStreak: current, BestStreak: best}
}

// sortDates sorts ascending in place. Insertion sort keeps this allocation
// free; completion histories are small.
func sortDates(dates []time.Time) {
	for i := 1; i < len(dates); i++ {
		for j := i; j > 0 && dates[j].Before(dates[j-1]); j-- {
			dates[j], dates[j-1] = dates[j-1], dates[j]
		}
	}
}
