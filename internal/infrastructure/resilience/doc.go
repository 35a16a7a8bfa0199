// Package resilience provides a circuit breaker for upstream site calls.
//
// The gateway talks to exactly one external party, the proxied site; when
// that site degrades, continuing to hammer it slows every session down. The
// breaker sits under the outbound HTTP client and sheds load while upstream
// recovers, then probes with a bounded number of half-open requests.
//
// States: closed (normal), open (shedding), half-open (probing). Transitions
// are driven by the settings' ReadyToTrip predicate and timeout.
package resilience
