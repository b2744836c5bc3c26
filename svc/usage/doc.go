// Package usage keeps the append-only ledger of feature usage counts.
//
// Each Record is a snapshot: the current usage of a (subscription, feature)
// pair is the count of its most recent record, and zero when none exists.
// Records carry the plan limit in force when they were written together
// with the usage percentage and whether the count was above the limit.
//
// MemoryLedger serves tests and single-process runs; PGLedger writes to the
// usage_records table. Recorder resolves the organization's plan and
// appends records through either.
package usage
