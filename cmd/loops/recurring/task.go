package recurring

import (
	"context"

	"github.com/opst/stevedore/pkg/loop"
)

// Task is one cycle of a recurring loop.
//
// Return:
//
// - T : the cursor passed to the next cycle.
//
// - bool : true when this cycle did something and more backlog can be.
//
// - error : same as err of loop.Break(err).
type Task[T any] func(context.Context, T) (T, bool, error)

// Applied binds rt to a policy: each cycle runs rt, then asks p what to
// do next.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, t T) (T, loop.Next) {
		new, ok, err := rt(ctx, t)
		return new, p.Next(ok, err)
	}
}
