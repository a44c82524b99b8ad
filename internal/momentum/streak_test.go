package momentum

import (
	"testing"
	"time"
)

// fixed reference clock: 2026-03-10 12:00 UTC
var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func day(offset int) string {
	return now.AddDate(0, 0, offset).Format("2006-01-02")
}

func TestStreakFromDays_Empty(t *testing.T) {
	stats := StreakFromDays(nil, now)
	if stats.CurrentStreak != 0 || stats.BestStreak != 0 {
		t.Errorf("StreakFromDays(nil) = %+v, want zeros", stats)
	}
}

func TestStreakFromDays_RunEndingYesterday(t *testing.T) {
	days := []string{day(-3), day(-2), day(-1)}
	stats := StreakFromDays(days, now)
	if stats.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3", stats.CurrentStreak)
	}
	if stats.BestStreak != 3 {
		t.Errorf("BestStreak = %d, want 3", stats.BestStreak)
	}
}

func TestStreakFromDays_TodayExtendsRun(t *testing.T) {
	days := []string{day(-2), day(-1), day(0)}
	stats := StreakFromDays(days, now)
	if stats.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3 (today counts)", stats.CurrentStreak)
	}
}

func TestStreakFromDays_MissingTodayDoesNotBreak(t *testing.T) {
	// No entry for today yet; the day is still open.
	days := []string{day(-2), day(-1)}
	stats := StreakFromDays(days, now)
	if stats.CurrentStreak != 2 {
		t.Errorf("CurrentStreak = %d, want 2", stats.CurrentStreak)
	}
}

func TestStreakFromDays_GapBreaksCurrentNotBest(t *testing.T) {
	// Five-day run long ago, nothing since.
	days := []string{day(-30), day(-29), day(-28), day(-27), day(-26)}
	stats := StreakFromDays(days, now)
	if stats.CurrentStreak != 0 {
		t.Errorf("CurrentStreak = %d, want 0", stats.CurrentStreak)
	}
	if stats.BestStreak != 5 {
		t.Errorf("BestStreak = %d, want 5", stats.BestStreak)
	}
}

func TestStreakFromDays_DuplicatesAndOrderIgnored(t *testing.T) {
	days := []string{day(-1), day(-3), day(-2), day(-1), day(-2)}
	stats := StreakFromDays(days, now)
	if stats.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3", stats.CurrentStreak)
	}
	if stats.BestStreak != 3 {
		t.Errorf("BestStreak = %d, want 3", stats.BestStreak)
	}
}

func TestStreakFromDays_BestPicksLongestRun(t *testing.T) {
	days := []string{
		day(-20), day(-19), // run of 2
		day(-10), day(-9), day(-8), day(-7), // run of 4
		day(-1), // run of 1, current
	}
	stats := StreakFromDays(days, now)
	if stats.BestStreak != 4 {
		t.Errorf("BestStreak = %d, want 4", stats.BestStreak)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", stats.CurrentStreak)
	}
}

func TestStreakFromDays_MalformedDatesSkipped(t *testing.T) {
	days := []string{"not-a-date", day(-1)}
	stats := StreakFromDays(days, now)
	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", stats.CurrentStreak)
	}
}
