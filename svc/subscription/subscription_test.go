package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/subcycle/svc/subscription"
)

func TestStatus_Valid(t *testing.T) {
	t.Parallel()

	for _, s := range subscription.Statuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, subscription.StatusNone.Valid())
	assert.False(t, subscription.Status("EXPIRED").Valid())
}

func TestSubscription_Predicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status     subscription.Status
		canAccess  bool
		isReadOnly bool
		isActive   bool
	}{
		{subscription.StatusTrialing, true, false, false},
		{subscription.StatusActive, true, false, true},
		{subscription.StatusGracePeriod, true, true, false},
		{subscription.StatusSuspended, false, false, false},
		{subscription.StatusPastDue, false, false, false},
		{subscription.StatusCanceled, false, false, false},
		{subscription.StatusEnded, false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			s := &subscription.Subscription{Status: tt.status}
			assert.Equal(t, tt.canAccess, s.CanAccess())
			assert.Equal(t, tt.isReadOnly, s.IsReadOnly())
			assert.Equal(t, tt.isActive, s.IsActive())
		})
	}
}

func TestSubscription_DaysLeftInTrial(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 21)
	s := &subscription.Subscription{Status: subscription.StatusTrialing, TrialEndsAt: &end}

	assert.Equal(t, 21, s.DaysLeftInTrial(start))
	assert.Equal(t, 1, s.DaysLeftInTrial(start.AddDate(0, 0, 20)))
	assert.Equal(t, 1, s.DaysLeftInTrial(end.Add(-time.Minute)))
	assert.Equal(t, 2, s.DaysLeftInTrial(start.AddDate(0, 0, 19).Add(time.Hour)))
	assert.Equal(t, 0, s.DaysLeftInTrial(end))
	assert.Equal(t, 0, s.DaysLeftInTrial(end.AddDate(0, 0, 3)))

	s.Status = subscription.StatusActive
	assert.Equal(t, 0, s.DaysLeftInTrial(start))

	s = &subscription.Subscription{Status: subscription.StatusTrialing}
	assert.Equal(t, 0, s.DaysLeftInTrial(start))
}

func TestBillingPeriod(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC), subscription.BillingAnnual.Advance(start))
	assert.Equal(t, start.AddDate(0, 1, 0), subscription.BillingMonthly.Advance(start))
	assert.False(t, subscription.BillingPeriod("WEEKLY").Valid())
}

func TestSubscription_CloneIsDeep(t *testing.T) {
	t.Parallel()

	end := time.Now()
	s := &subscription.Subscription{TrialEndsAt: &end}
	c := s.Clone()
	*c.TrialEndsAt = end.Add(time.Hour)
	assert.Equal(t, end, *s.TrialEndsAt)
}
