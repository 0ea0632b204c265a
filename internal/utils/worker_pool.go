package utils

import (
	"context"
	"sync"
)

type CompletedTask[In any, Out any] struct {
	Task   In
	Result Out
	Error  error
}

// RunInPool drains queue with at most maxWorkers concurrent workers and
// closes completed once every task is reported. Tasks still queued when ctx
// is done are reported with ctx's error instead of being run.
func RunInPool[In any, Out any](ctx context.Context, worker func(context.Context, In) (Out, error), queue chan In, completed chan CompletedTask[In, Out], maxWorkers int) {
	workers := max(min(len(queue), maxWorkers), 1)

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				for next := range queue {
					if err := ctx.Err(); err != nil {
						completed <- CompletedTask[In, Out]{Task: next, Error: err}
						continue
					}

					res, err := worker(ctx, next)
					if err != nil {
						completed <- CompletedTask[In, Out]{Task: next, Result: res, Error: err}
					} else {
						completed <- CompletedTask[In, Out]{Task: next, Result: res}
					}
				}
			}()
		}

		wg.Wait()

		close(completed)
	}()
}
