// Package api exposes the subscription service over HTTP with chi.
//
// Every response uses the same envelope:
//
//	{"data": ..., "meta": {...}, "error": {"code": "...", "message": "...", "details": {...}}}
//
// Domain errors map to status codes in one place (errorStatus): unknown
// records are 404, conflicting lifecycle operations 409, invalid input 422
// and a denied feature limit 402 with the limit decision as data.
//
// Routes under /v1 require the internal API key in X-API-Key when one is
// configured. /health and /metrics are public.
package api
