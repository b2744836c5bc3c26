// Package limits evaluates plan feature limits.
//
// Evaluate is a pure function over a subscription, its plan and a usage
// count. It denies every request while the subscription is read-only or
// has lost access, treats missing limits as unlimited, tolerates usage up
// to floor(max × 1.10) and flags usage above max as a warning. Denials and
// warnings carry a localized upgrade message (Spanish by default, English
// on request) and the code of the next plan tier.
//
// Service loads the subscription, plan and current usage for an
// organization and exposes Validate, Enforce and Overview.
package limits
