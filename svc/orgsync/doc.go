// Package orgsync mirrors subscription status into the organization
// service. HTTPSyncer PUTs a StatusUpdate to StatusPath with retries, an
// optional HMAC signature and a circuit breaker; Nop is used when no
// organization service is configured.
package orgsync
