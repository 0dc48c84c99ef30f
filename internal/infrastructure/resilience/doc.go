/*
Package resilience provides a circuit breaker for outbound calls.

# Overview

Artifact downloads hit a handful of third-party mirrors. When one of them
starts failing, the breaker for that host opens and later provisioning
tasks fail fast instead of waiting out every retry.

States: Closed (calls pass), Open (calls rejected with ErrCircuitOpen),
Half-Open (a limited number of trial calls decide whether to close again).

# Usage

	group := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	err := group.For(u.Host).Do(ctx, func(ctx context.Context) error {
		return fetch(ctx, u)
	})
*/
package resilience
