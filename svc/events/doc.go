// Package events defines the lifecycle events emitted after a subscription
// transition commits.
//
// Every event is an Envelope (ids and timestamp) around exactly one Payload
// variant; the variant determines the Kind. Envelopes round-trip through
// JSON, so consumers of the Redis stream can decode them back into typed
// payloads:
//
//	e := events.New(orgID, subID, now, events.TrialExpired{TrialEndsAt: end})
//	err := publisher.Publish(ctx, e)
//
// Publishing is best effort. Callers log failures and move on.
package events
