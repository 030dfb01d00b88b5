package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

const chanSize = 1024

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Parallel runs nJobs jobs on nWorkers goroutines. worker receives the id of
// the goroutine running it and the job id. The first failing job (in job
// order) is returned; remaining jobs are not scheduled once ctx is cancelled.
// A panicking job is reported as an *errors.PanicError.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerID, jobID int) error) error {
	if nWorkers <= 1 {
		for i := 0; i < nJobs; i++ {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			if err := runJob(worker, 0, i); err != nil {
				return err
			}
		}
		return nil
	}

	// stop stops the producer once every consumer has returned
	produce, stop := context.WithCancel(ctx)
	defer stop()

	c := make(chan int, chanSize)
	// producer
	go func() {
		defer close(c)
		for i := 0; i < nJobs; i++ {
			select {
			case <-produce.Done():
				return
			case c <- i:
			}
		}
	}()

	// consumers
	var wg sync.WaitGroup
	errs := make([]error, nJobs)
	for j := 0; j < nWorkers; j++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case jobID, ok := <-c:
					if !ok {
						return
					}
					if err := ctx.Err(); err != nil {
						errs[jobID] = err
						return
					}
					if err := runJob(worker, workerID, jobID); err != nil {
						errs[jobID] = err
						return
					}
				}
			}
		}(j)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func runJob(worker func(workerID, jobID int) error, workerID, jobID int) (err error) {
	defer errors.Recover(&err, "parallel job")
	return worker(workerID, jobID)
}

// Workers returns n when positive and the number of CPUs otherwise.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}
