// Package resilience implements the circuit breaker guarding outbound
// calls from the client facade.
//
// The breaker runs the usual three states. Closed admits everything and
// counts outcomes per interval; enough consecutive failures trip it to
// open. Open refuses immediately with ErrCircuitOpen, without touching
// the counts, until the timeout elapses. Half-open admits a bounded
// probe budget and either closes on sustained success or reopens on the
// first failure.
//
// Every state change begins a new generation. Outcomes reported by
// calls admitted under an earlier generation are discarded, so a slow
// request finishing after a trip cannot corrupt the fresh counts.
package resilience
