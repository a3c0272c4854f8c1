package report

import (
	"fmt"
	"math"
	"unicode/utf8"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes renders n using base-1024 units with one decimal, e.g. 1536 -> "1.5 KB"
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}

	value := float64(n)
	unit := 0

	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}

	return fmt.Sprintf("%.1f %s", roundTenth(value), sizeUnits[unit])
}

// FormatMs renders a millisecond duration as "850ms" below one second and "2.5s" above
func FormatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	return fmt.Sprintf("%.1fs", roundTenth(float64(ms)/1000))
}

// FormatSeconds renders a run duration as "42s" or "3m 12s"
func FormatSeconds(s int64) string {
	if s < 0 {
		s = 0
	}

	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}

	return fmt.Sprintf("%dm %ds", s/60, s%60)
}

// roundTenth rounds half away from zero to one decimal
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// truncateKey shortens a cache key for display, counting runes
func truncateKey(key string) string {
	if utf8.RuneCountInString(key) <= keyLength {
		return key
	}

	n := 0
	for i := range key {
		if n == keyLength {
			return key[:i] + "…"
		}
		n++
	}

	return key
}
