package domain

import "time"

// XPPerLevel is the XP span of a single level.
const XPPerLevel = 1000

// CalculateLevel returns floor(xp / XPPerLevel) + 1. Levels start at 1.
func CalculateLevel(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// XPToNextLevel returns the XP still needed to reach the next level. It is
// XPPerLevel exactly on a level boundary.
func XPToNextLevel(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return XPPerLevel - xp%XPPerLevel
}

// XPProgress returns the percentage through the current level, in [0, 100).
func XPProgress(xp int64) float64 {
	if xp < 0 {
		xp = 0
	}
	return float64(xp%XPPerLevel) / XPPerLevel * 100
}

// XPAward is the outcome of a single addXP call.
type XPAward struct {
	UserID    string `json:"user_id"`
	NewXP     int64  `json:"new_xp"`
	NewLevel  int    `json:"new_level"`
	LeveledUp bool   `json:"leveled_up"`
}

// Progress is the read-only gamification view of a user.
type Progress struct {
	UserID          string  `json:"user_id"`
	SchoolID        string  `json:"school_id,omitempty"`
	XP              int64   `json:"xp"`
	Level           int     `json:"level"`
	XPToNextLevel   int64   `json:"xp_to_next_level"`
	ProgressPercent float64 `json:"progress_percent"`
	Streak          int     `json:"streak"`
}

// ProgressOf derives the gamification view of u.
func ProgressOf(u *User) Progress {
	return Progress{
		UserID:          u.ID,
		SchoolID:        u.SchoolID,
		XP:              u.XP,
		Level:           CalculateLevel(u.XP),
		XPToNextLevel:   XPToNextLevel(u.XP),
		ProgressPercent: XPProgress(u.XP),
		Streak:          u.Streak,
	}
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AdvanceStreak returns the streak after activity on day, given the last
// active day. Same day keeps the streak, the following day extends it, and
// a gap starts a new streak of 1. Activity older than the last active day
// leaves the streak alone.
func AdvanceStreak(streak int, lastActiveOn *time.Time, day time.Time) int {
	day = Day(day)
	if lastActiveOn == nil {
		return 1
	}
	last := Day(*lastActiveOn)
	switch {
	case !day.After(last):
		if streak < 1 {
			return 1
		}
		return streak
	case last.AddDate(0, 0, 1).Equal(day):
		return streak + 1
	default:
		return 1
	}
}

// StreakIsStale reports whether a streak last extended on lastActiveOn has
// lapsed as of today.
func StreakIsStale(lastActiveOn *time.Time, today time.Time) bool {
	if lastActiveOn == nil {
		return true
	}
	return Day(*lastActiveOn).Before(Day(today).AddDate(0, 0, -1))
}
