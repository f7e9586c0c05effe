package dispatch

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/pkg/logx"
)

// Dispatcher fans a batch of upload tasks out over a fixed pool of runners.
// Each runner owns its archive backend, so nothing below the task channel is
// shared between workers. Results flow back over a single channel and are
// collected by one goroutine; a worker never touches another worker's result.
type Dispatcher struct {
	id      string
	runners []core.Runner
}

// New creates a dispatcher over the given runners. The pool size is the
// number of runners, one worker goroutine per runner.
func New(id string, runners []core.Runner) (*Dispatcher, error) {
	if len(runners) == 0 {
		return nil, errors.New("at least one runner is required")
	}
	for i, r := range runners {
		if r == nil {
			return nil, errors.Errorf("runner %d is nil", i)
		}
	}

	return &Dispatcher{id: id, runners: runners}, nil
}

// Run executes all tasks and blocks until every one has a result. A task that
// cannot start because the context was cancelled is reported as failed, so the
// result set always has one entry per task. Order of results follows
// completion, not submission.
func (d *Dispatcher) Run(ctx context.Context, tasks []core.UploadTask) []core.UploadResult {
	logx.As().Info().
		Str("id", d.id).
		Int("tasks", len(tasks)).
		Int("workers", len(d.runners)).
		Msg("Dispatching upload tasks")

	taskChan := make(chan core.UploadTask, len(tasks))
	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	resultChan := make(chan core.UploadResult, len(tasks))

	wg := sync.WaitGroup{}
	for i, runner := range d.runners {
		wg.Add(1)
		go func(workerID int, r core.Runner) {
			defer wg.Done()
			d.work(ctx, workerID, r, taskChan, resultChan)
		}(i, runner)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]core.UploadResult, 0, len(tasks))
	for result := range resultChan {
		results = append(results, result)
	}

	logx.As().Info().
		Str("id", d.id).
		Int("results", len(results)).
		Msg("All upload tasks finished")

	return results
}

// work drains the task channel until it is closed or the context ends.
func (d *Dispatcher) work(ctx context.Context, workerID int, runner core.Runner,
	tasks <-chan core.UploadTask, results chan<- core.UploadResult) {
	for task := range tasks {
		if ctx.Err() != nil {
			results <- core.UploadResult{
				FileName:     task.FileName,
				FileUUID:     task.FileUUID,
				ResolvedPath: task.ResolvedPath,
				Status:       core.StatusFailed,
				Error:        errors.Wrap(ctx.Err(), "upload cancelled before start"),
			}
			continue
		}

		logx.As().Debug().
			Str("id", d.id).
			Int("worker", workerID).
			Str("file_name", task.FileName).
			Msg("Worker picked up task")

		results <- runner.Run(ctx, task)
	}
}
