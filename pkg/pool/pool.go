package pool

import (
	"context"
	"sync"
)

// WorkerFunc processes a single item and may return an error.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// Run processes a slice of items on numWorkers goroutines. Item order is not
// preserved; within one item the worker runs to completion. It returns every
// error the workers produced.
func Run[T any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T]) []error {
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	taskChan := make(chan T, numWorkers)
	errChan := make(chan error, len(items))

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range taskChan {
				select {
				case <-ctx.Done():
					return
				default:
					if err := workerFunc(ctx, item); err != nil {
						errChan <- err
					}
				}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case taskChan <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(taskChan)

	wg.Wait()
	close(errChan)

	var allErrors []error
	for err := range errChan {
		allErrors = append(allErrors, err)
	}
	return allErrors
}
