package dht

import "fmt"

// validateClientParams rejects the programmer errors the simulator refuses to
// paper over (spec §7): a node's bucket capacity and its three lookup-control
// parameters must all be positive. Simulated network failures are data, not
// exceptions — but a misconfigured node is a bug in the caller and must
// surface immediately rather than silently producing nonsense routing
// tables or lookups that can never make progress.
func validateClientParams(k, alpha, beta, sigma int) error {
	if k <= 0 {
		return fmt.Errorf("invalid bucket capacity k=%d: must be positive", k)
	}
	if alpha <= 0 {
		return fmt.Errorf("invalid alpha=%d: must be positive", alpha)
	}
	if beta <= 0 {
		return fmt.Errorf("invalid beta=%d: must be positive", beta)
	}
	if sigma <= 0 {
		return fmt.Errorf("invalid sigma=%d: must be positive", sigma)
	}
	return nil
}
