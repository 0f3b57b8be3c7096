package dynops

import (
	"context"
	"runtime"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Call is one operator invocation for ExecuteAll.
type Call struct {
	Op     Op
	Inputs []*tensors.Tensor
}

// ExecuteAll runs the independent calls concurrently, with at most parallelism of them at a
// time (runtime.NumCPU() if parallelism <= 0), and returns their outputs in the order of calls.
//
// The first error is returned, and calls that haven't started yet are skipped. Calls already
// running are not interrupted: each one is a short synchronous computation.
func ExecuteAll(ctx context.Context, calls []Call, parallelism int) ([]*tensors.Tensor, error) {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	outputs := make([]*tensors.Tensor, len(calls))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for ii, call := range calls {
		if groupCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			output, err := Execute(call.Op, call.Inputs...)
			if err != nil {
				return errors.WithMessagef(err, "call #%d", ii)
			}
			outputs[ii] = output
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "ExecuteAll interrupted")
	}
	return outputs, nil
}
