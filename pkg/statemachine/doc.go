// Package statemachine provides a generic, immutable transition table.
//
// A Machine maps (state, event) pairs to target states, optionally gated by
// guards. It keeps no current state of its own, which makes it suitable for
// records whose state lives in a database: load the record, ask the machine
// for the next state, persist the result inside the same transaction.
//
//	type Status string
//	type Event string
//
//	m := statemachine.MustNew(
//	    statemachine.WithTransition[Status, Event]("draft", "review", "submit"),
//	    statemachine.WithTransition[Status, Event]("review", "published", "approve"),
//	)
//
//	next, err := m.Fire(ctx, doc.Status, "submit", doc)
//	if statemachine.IsNoTransitionAvailableError(err) {
//	    // reject the request
//	}
package statemachine
