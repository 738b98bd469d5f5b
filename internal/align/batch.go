package align

import (
	"context"
	"sync"
	"time"

	"chatalign/internal/history"
	"chatalign/internal/logging"
)

// AlignBatch aligns reqs with up to workers concurrent runs. Outcomes come
// back in request order. Requests not started before ctx is cancelled are
// reported as cancelled without touching history.
func (r *Runner) AlignBatch(ctx context.Context, reqs []Request, workers int) []Outcome {
	if workers < 1 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}
	outcomes := make([]Outcome, len(reqs))
	jobs := make(chan int)

	logger := logging.NewComponentLogger(r.logger, "batch")
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("transcripts", len(reqs)),
		logging.Int("workers", workers),
	)
	started := time.Now()

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					outcomes[i] = cancelledOutcome(reqs[i], err)
					continue
				}
				// per-run failures are carried in the outcome
				outcomes[i], _ = r.AlignFile(ctx, reqs[i])
			}
		}()
	}

	for i := range reqs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			outcomes[i] = cancelledOutcome(reqs[i], ctx.Err())
		}
	}
	close(jobs)
	wg.Wait()

	counts := make(map[history.Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	logger.Info("batch complete",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("succeeded", counts[history.StatusSucceeded]),
		logging.Int("invalid", counts[history.StatusInvalid]),
		logging.Int("failed", counts[history.StatusFailed]),
		logging.Int("cancelled", counts[history.StatusCancelled]),
		logging.Duration("elapsed", time.Since(started)),
	)
	return outcomes
}

func cancelledOutcome(req Request, err error) Outcome {
	return Outcome{
		Request: req,
		Status:  history.StatusCancelled,
		Error:   err.Error(),
		Err:     err,
	}
}
