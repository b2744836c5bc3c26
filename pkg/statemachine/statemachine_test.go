package statemachine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/pkg/statemachine"
)

type state string
type event string

const (
	draft     state = "draft"
	review    state = "review"
	published state = "published"
	archived  state = "archived"

	submit  event = "submit"
	approve event = "approve"
	archive event = "archive"
)

func TestMachine_Fire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := statemachine.MustNew(
		statemachine.WithTransition(draft, review, submit),
		statemachine.WithTransition(review, published, approve),
		statemachine.WithTransitions([]state{draft, review, published}, archived, archive),
	)

	t.Run("follows registered edges", func(t *testing.T) {
		t.Parallel()
		next, err := m.Fire(ctx, draft, submit, nil)
		require.NoError(t, err)
		assert.Equal(t, review, next)

		next, err = m.Fire(ctx, published, archive, nil)
		require.NoError(t, err)
		assert.Equal(t, archived, next)
	})

	t.Run("unknown edge returns typed error and keeps state", func(t *testing.T) {
		t.Parallel()
		next, err := m.Fire(ctx, archived, submit, nil)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
		assert.Equal(t, archived, next)
		assert.Contains(t, err.Error(), "'archived'")
		assert.False(t, m.CanFire(ctx, archived, submit, nil))
	})

	t.Run("lists events in registration order", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []event{submit, archive}, m.Events(draft))
		assert.Empty(t, m.Events(archived))
	})
}

func TestMachine_Guards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	allowed := func(_ context.Context, _ state, _ event, data any) bool {
		v, _ := data.(bool)
		return v
	}

	m := statemachine.MustNew(
		statemachine.WithTransition(review, published, approve, allowed),
		statemachine.WithTransition(review, draft, approve),
	)

	next, err := m.Fire(ctx, review, approve, true)
	require.NoError(t, err)
	assert.Equal(t, published, next, "first passing transition wins")

	next, err = m.Fire(ctx, review, approve, false)
	require.NoError(t, err)
	assert.Equal(t, draft, next, "falls through to the unguarded edge")

	only := statemachine.MustNew(statemachine.WithTransition(review, published, approve, allowed))
	_, err = only.Fire(ctx, review, approve, false)
	assert.True(t, statemachine.IsTransitionRejectedError(err))
	assert.True(t, only.CanFire(ctx, review, approve, true))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New[state, event]()
	assert.ErrorIs(t, err, statemachine.ErrNoTransitions)

	_, err = statemachine.New(statemachine.WithTransitions[state, event](nil, archived, archive))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() { statemachine.MustNew[state, event]() })
}
