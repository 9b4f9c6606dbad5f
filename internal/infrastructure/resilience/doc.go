/*
Package resilience guards calls to the coordination service with a circuit breaker.

A run of consecutive transport failures opens the breaker. While open, calls
fail fast with ErrCircuitOpen instead of piling up behind a dead ensemble.
Outcomes the caller expects, such as a lost compare-and-swap, are reported
through Settings.Expected and count as successes.

	b := resilience.New("zookeeper", resilience.Settings{
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 5,
		Expected:            isConflict,
	}, logger)

	state, err := resilience.Do(b, func() (*NodeState, error) {
		return read(path)
	})
*/
package resilience
