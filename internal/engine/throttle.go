package engine

import "time"

// NotifyCooldown is the minimum elapsed time between notifications for the
// same subject. It applies identically to every category.
const NotifyCooldown = 12 * time.Hour

// ShouldNotify decides whether a notification may fire. A subject that was
// never notified in the current cycle always fires. Pure elapsed-duration
// arithmetic; no business hours, no timezone logic.
func ShouldNotify(lastNotified *time.Time, now time.Time) bool {
	if lastNotified == nil {
		return true
	}
	return now.Sub(*lastNotified) >= NotifyCooldown
}
