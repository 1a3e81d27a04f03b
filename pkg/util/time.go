package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PixelsFromDuration converts a duration in milliseconds to a horizontal
// timeline offset at the given pixels-per-second rate.
func PixelsFromDuration(durationMs, pxPerSec float64) float64 {
	return (durationMs / 1000) * pxPerSec
}

// DurationFromPixels is the inverse of PixelsFromDuration and returns milliseconds.
func DurationFromPixels(px, pxPerSec float64) float64 {
	if pxPerSec <= 0 {
		return 0
	}
	return px / pxPerSec * 1000
}

// SecondsFromPixels converts a pixel offset to seconds.
func SecondsFromPixels(px, pxPerSec float64) float64 {
	if pxPerSec <= 0 {
		return 0
	}
	return px / pxPerSec
}

// FormatClock renders seconds as H:MM:SS when there is at least one hour and
// M:SS otherwise. Fractions are truncated, never rounded up.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// FormatNumber renders a float for ffmpeg filter arguments without trailing zeros
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatDuration converts time.Duration to ffmpeg timestamp format
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	hours := int(seconds / 3600)
	minutes := int((seconds - float64(hours*3600)) / 60)
	secs := seconds - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
}

// ParseTimestamp parses a timestamp string (HH:MM:SS.mmm or SS.mmm or MM:SS)
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}

	return time.Duration(total * float64(time.Second)), nil
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30/1")
func ParseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
