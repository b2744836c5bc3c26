package statemachine

import (
	"context"
	"fmt"
)

// Guard decides whether a transition may proceed. data is whatever the
// caller passed to Fire.
type Guard[S, E comparable] func(ctx context.Context, from S, event E, data any) bool

// Transition describes one edge of the machine.
type Transition[S, E comparable] struct {
	From   S
	To     S
	Event  E
	Guards []Guard[S, E]
}

// Machine is an immutable transition table. It does not hold a current
// state: callers pass the state they loaded and persist the returned one, so
// a single Machine can serve any number of records concurrently.
type Machine[S, E comparable] struct {
	transitions map[S]map[E][]Transition[S, E]
	events      map[S][]E
}

// New builds a Machine from options. At least one transition is required.
func New[S, E comparable](opts ...Option[S, E]) (*Machine[S, E], error) {
	m := &Machine[S, E]{
		transitions: make(map[S]map[E][]Transition[S, E]),
		events:      make(map[S][]E),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if len(m.transitions) == 0 {
		return nil, ErrNoTransitions
	}
	return m, nil
}

// MustNew is like New but panics on error.
func MustNew[S, E comparable](opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(opts...)
	if err != nil {
		panic(fmt.Errorf("statemachine: %w", err))
	}
	return m
}

func (m *Machine[S, E]) add(t Transition[S, E]) {
	byEvent, ok := m.transitions[t.From]
	if !ok {
		byEvent = make(map[E][]Transition[S, E])
		m.transitions[t.From] = byEvent
	}
	if _, seen := byEvent[t.Event]; !seen {
		m.events[t.From] = append(m.events[t.From], t.Event)
	}
	byEvent[t.Event] = append(byEvent[t.Event], t)
}

// Fire resolves the target state for event fired in state from.
// It returns *ErrNoTransitionAvailable when no edge exists and
// *ErrTransitionRejected when edges exist but every one was vetoed by a guard.
func (m *Machine[S, E]) Fire(ctx context.Context, from S, event E, data any) (S, error) {
	candidates := m.transitions[from][event]
	if len(candidates) == 0 {
		return from, NewErrNoTransitionAvailable(from, event)
	}
	for _, t := range candidates {
		if passes(ctx, t, data) {
			return t.To, nil
		}
	}
	return from, NewErrTransitionRejected(from, event)
}

// CanFire reports whether Fire would succeed.
func (m *Machine[S, E]) CanFire(ctx context.Context, from S, event E, data any) bool {
	for _, t := range m.transitions[from][event] {
		if passes(ctx, t, data) {
			return true
		}
	}
	return false
}

// Events lists the events registered for from, in registration order.
// Guards are not evaluated.
func (m *Machine[S, E]) Events(from S) []E {
	return append([]E(nil), m.events[from]...)
}

func passes[S, E comparable](ctx context.Context, t Transition[S, E], data any) bool {
	for _, g := range t.Guards {
		if g != nil && !g(ctx, t.From, t.Event, data) {
			return false
		}
	}
	return true
}
