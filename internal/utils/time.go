package utils

import "time"

// MillisToTime converts an epoch-millisecond timestamp to time.Time.
// Zero maps to the zero time so optional fields stay unset.
func MillisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// TimeToMillis is the inverse of MillisToTime.
func TimeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
