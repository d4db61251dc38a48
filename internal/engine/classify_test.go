package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		days int
		want Category
	}{
		{30, CategoryNone},
		{8, CategoryNone},
		{7, CategoryReminderEarly},
		{6, CategoryNone},
		{5, CategoryNone},
		{4, CategoryNone},
		{3, CategoryReminderMid},
		{2, CategoryNone},
		{1, CategoryReminderFinal},
		{0, CategoryDueToday},
		{-1, CategoryGraceExpired},
		{-10, CategoryGraceExpired},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.days), "days=%d", tc.days)
	}
}

func TestCategoryIsReminder(t *testing.T) {
	assert.True(t, CategoryReminderEarly.IsReminder())
	assert.True(t, CategoryReminderMid.IsReminder())
	assert.True(t, CategoryReminderFinal.IsReminder())
	assert.False(t, CategoryDueToday.IsReminder())
	assert.False(t, CategoryGraceExpired.IsReminder())
	assert.False(t, CategoryNone.IsReminder())
}
