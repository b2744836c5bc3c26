// Package subscription owns the per-organization subscription record and
// the state machine that mutates it.
//
// Statuses move only through Manager operations:
//
//	(none)        -> TRIALING      StartTrial
//	TRIALING      -> ACTIVE        Activate (also from GRACE_PERIOD, SUSPENDED)
//	TRIALING      -> GRACE_PERIOD  ExpireTrial
//	GRACE_PERIOD  -> SUSPENDED     Suspend (also from PAST_DUE)
//	ACTIVE        -> ACTIVE        UpgradePlan, RecordPayment
//	ACTIVE        -> PAST_DUE      MarkPastDue
//	PAST_DUE      -> ACTIVE        RecordPayment
//	non-terminal  -> CANCELED      Cancel, CancelByProvider
//	CANCELED      -> ENDED         End
//
// Each operation is one Store.Update, so concurrent operations on the same
// record are serialized while different records proceed in parallel. After
// the write commits the Manager hands a Change to its Dispatcher; sync,
// events and notifications happen there and cannot undo the transition.
//
// MemoryStore and PGStore implement Store.
package subscription
