// Package counter holds the Pending Click Counter: a fast per-code tally of
// clicks not yet folded into the Link Store.
package counter

import "context"

// Counter is safe for concurrent use. DrainAll never loses an Increment that
// races with it: each click lands either in the returned snapshot or in the
// counter for the next drain.
type Counter interface {
	Increment(ctx context.Context, code string) error
	Pending(ctx context.Context, code string) (int64, error)
	DrainAll(ctx context.Context) (map[string]int64, error)
	Restore(ctx context.Context, deltas map[string]int64) error
}
