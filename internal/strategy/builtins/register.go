package builtins

import "macross/internal/strategy"

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry) {
	r.Register(SMACrossName, newSMACross)
	r.Register(VoteSweepName, newVoteSweep)
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
