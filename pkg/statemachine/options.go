package statemachine

// Option configures a Machine during construction.
type Option[S, E comparable] func(*Machine[S, E]) error

// WithTransition registers from --event--> to. Several transitions may share
// the same from/event pair; the first one whose guards all pass wins, in
// registration order.
func WithTransition[S, E comparable](from, to S, event E, guards ...Guard[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		m.add(Transition[S, E]{From: from, To: to, Event: event, Guards: guards})
		return nil
	}
}

// WithTransitions registers the same event and target for several source
// states.
func WithTransitions[S, E comparable](from []S, to S, event E, guards ...Guard[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		if len(from) == 0 {
			return ErrInvalidTransition
		}
		for _, f := range from {
			m.add(Transition[S, E]{From: f, To: to, Event: event, Guards: guards})
		}
		return nil
	}
}
