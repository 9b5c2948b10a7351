package scheduler

import "time"

// ============================================================
// Double-fire guard
// ============================================================

// RunKey identifies one trigger minute: "YYYY-MM-DD HH:MM". Two sweeps
// landing in the same minute produce the same key.
func RunKey(now time.Time) string {
	return now.Format("2006-01-02 15:04")
}

// ShouldRun decides whether the daily routine fires for a tenant on
// this sweep: the current minute must match the tenant's configured
// trigger time, and the persisted marker must not already carry this
// minute's key.
func ShouldRun(now time.Time, dailyTriggerTime, lastMarker string) bool {
	if dailyTriggerTime == "" {
		return false
	}
	if now.Format("15:04") != dailyTriggerTime {
		return false
	}
	return lastMarker != RunKey(now)
}
