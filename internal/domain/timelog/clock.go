package timelog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MinutesPerDay bounds minute-of-day values.
const MinutesPerDay = 24 * 60

// ParseClock parses a strict 24-hour "HH:MM" or "H:MM" value.
func ParseClock(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// FormatClock renders a minute-of-day as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// NewPunch builds a DayPunch from a minute-of-day.
func NewPunch(minute int) DayPunch {
	return DayPunch{Time: FormatClock(minute), MinuteOfDay: minute}
}

// SortPunches orders punches by minute, then lexically, dropping repeated times.
func SortPunches(punches []DayPunch) []DayPunch {
	out := slices.Clone(punches)
	slices.SortFunc(out, func(a, b DayPunch) int {
		if a.MinuteOfDay != b.MinuteOfDay {
			return a.MinuteOfDay - b.MinuteOfDay
		}
		return strings.Compare(a.Time, b.Time)
	})
	return slices.CompactFunc(out, func(a, b DayPunch) bool {
		return a.Time == b.Time
	})
}
