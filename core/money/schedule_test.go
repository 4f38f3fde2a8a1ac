package money

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverdueAt(t *testing.T) {
	due := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, OverdueAt(due.AddDate(0, 0, -1), due, 5))
	assert.False(t, OverdueAt(due.AddDate(0, 0, 3), due, 5), "still in grace")
	assert.False(t, OverdueAt(GraceDeadline(due, 5), due, 5), "deadline itself is not overdue")
	assert.True(t, OverdueAt(due.AddDate(0, 0, 6), due, 5))
	assert.True(t, OverdueAt(due.Add(time.Hour), due, 0))
}

func TestDueWithin(t *testing.T) {
	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 72 * time.Hour

	assert.True(t, DueWithin(now, now.Add(24*time.Hour), window))
	assert.True(t, DueWithin(now, now.Add(window), window))
	assert.False(t, DueWithin(now, now.Add(window+time.Minute), window))
	assert.False(t, DueWithin(now, now.Add(-time.Minute), window), "past due dates are not upcoming")
}

func TestBeforeDeadline(t *testing.T) {
	deadline := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, BeforeDeadline(deadline.Add(-time.Second), deadline))
	assert.False(t, BeforeDeadline(deadline, deadline), "deadline itself does not qualify")
	assert.False(t, BeforeDeadline(deadline.Add(time.Second), deadline))
}
