package engine

// Category is the urgency bucket driving the notification or revocation
// choice for one subject on one run.
type Category string

const (
	CategoryNone          Category = "NONE"
	CategoryReminderEarly Category = "REMINDER_EARLY"
	CategoryReminderMid   Category = "REMINDER_MID"
	CategoryReminderFinal Category = "REMINDER_FINAL"
	CategoryDueToday      Category = "DUE_TODAY"
	CategoryGraceExpired  Category = "GRACE_EXPIRED"
)

// Classify maps whole days remaining to a category. Reminders fire on exact
// day boundaries only; the throttle's cooldown covers jobs that run more
// than once per boundary.
func Classify(daysRemaining int) Category {
	switch {
	case daysRemaining > 7:
		return CategoryNone
	case daysRemaining == 7:
		return CategoryReminderEarly
	case daysRemaining == 3:
		return CategoryReminderMid
	case daysRemaining == 1:
		return CategoryReminderFinal
	case daysRemaining == 0:
		return CategoryDueToday
	case daysRemaining < 0:
		return CategoryGraceExpired
	}
	return CategoryNone
}

// IsReminder reports whether c is one of the advance-warning categories.
func (c Category) IsReminder() bool {
	switch c {
	case CategoryReminderEarly, CategoryReminderMid, CategoryReminderFinal:
		return true
	}
	return false
}
