package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/pkg/scheduler"
	"github.com/dmitrymomot/subcycle/svc/lifecycle"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

func TestScanner_Register(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	sub := e.trial(t, t0)
	e.clock.Set(t0.AddDate(0, 0, 22))

	sch := scheduler.New(scheduler.WithClock(e.clock.Now))
	scanner := lifecycle.NewScanner(e.store, e.manager, lifecycle.WithClock(e.clock.Now))
	require.NoError(t, scanner.Register(sch, lifecycle.DefaultSchedules()))
	assert.Equal(t, []string{lifecycle.JobExpiration, lifecycle.JobReminders}, sch.Jobs())

	next, ok := sch.NextRun(lifecycle.JobExpiration)
	require.True(t, ok)
	assert.Equal(t, 2, next.Hour())

	require.NoError(t, sch.RunNow(context.Background(), lifecycle.JobExpiration))
	assert.Equal(t, subscription.StatusGracePeriod, e.status(t, sub.ID).Status)

	require.NoError(t, sch.RunNow(context.Background(), lifecycle.JobReminders))
	assert.Error(t, scanner.Register(sch, lifecycle.DefaultSchedules()))
}
