package interp

import "context"

// Strategy is one way of running a prepared code string. Strategies are
// tried in a fixed order; a Go error from Run means the strategy itself
// failed (not the user's code) and the next strategy should be tried.
type Strategy interface {
	Name() string
	Run(ctx context.Context, code string) (*Output, error)
}
