package transfer

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/internal/progress"
	"github.com/seqarc/tern/pkg/fsx"
	"github.com/seqarc/tern/pkg/logx"
)

// Executor runs one task at a time to its terminal classification: up to
// retryLimit sequential transfer attempts against the archive backend, with a
// policy-driven delay between failures. Exactly one UploadResult is produced
// per task regardless of how many attempts ran.
//
// Each attempt is observed by a progress sampler running concurrently with
// the blocking transfer call; the sampler is cancelled the instant the
// attempt completes and has no say in the classification.
type Executor struct {
	id         string
	archive    core.Archive
	retryLimit int
	policy     core.BackoffPolicy
	sampler    *progress.Sampler
}

// New creates an Executor.
//
// Parameters:
//   - id: A unique identifier for logging.
//   - archive: The backend performing single transfer attempts.
//   - retryLimit: The maximum number of attempts per task (at least 1).
//   - policy: Yields the delay between a failed attempt and the next.
//   - sampler: Observes in-flight attempts; may be nil to disable sampling.
func New(id string, archive core.Archive, retryLimit int, policy core.BackoffPolicy, sampler *progress.Sampler) (*Executor, error) {
	if archive == nil {
		return nil, errors.New("executor requires an archive backend")
	}
	if retryLimit < 1 {
		return nil, errors.Errorf("retry limit must be at least 1, got %d", retryLimit)
	}
	if policy == nil {
		return nil, errors.New("executor requires a backoff policy")
	}

	return &Executor{
		id:         id,
		archive:    archive,
		retryLimit: retryLimit,
		policy:     policy,
		sampler:    sampler,
	}, nil
}

func (e *Executor) Info() string {
	return e.id
}

// Run executes the task's retry loop and returns its single terminal result.
func (e *Executor) Run(ctx context.Context, task core.UploadTask) core.UploadResult {
	result := core.UploadResult{
		FileName:     task.FileName,
		FileUUID:     task.FileUUID,
		ResolvedPath: task.ResolvedPath,
	}

	// tasks that never resolved a path never start an attempt
	if task.ResolvedPath == "" {
		result.Status = core.StatusSkipped
		result.Error = errors.Wrapf(core.ErrFileNotFound, "%s was not discovered", task.FileName)
		return result
	}

	start := time.Now()
	var lastErr error
	var lastInfo *core.StoreInfo

	for attempt := 1; attempt <= e.retryLimit; attempt++ {
		result.Attempts = attempt

		info, err := e.attempt(ctx, task)
		if err == nil {
			result.Status = core.StatusSuccess
			result.Duration = time.Since(start)
			result.AvgSpeed = averageSpeed(info.BytesSent, result.Duration)

			logx.As().Info().
				Str("executor", e.Info()).
				Str("file_name", task.FileName).
				Str("uuid", task.FileUUID).
				Int("attempt", attempt).
				Int64("bytes_sent", info.BytesSent).
				Dur("duration", result.Duration).
				Msg("Upload succeeded")
			return result
		}

		lastErr = err
		lastInfo = info

		logx.As().Warn().
			Err(err).
			Str("executor", e.Info()).
			Str("file_name", task.FileName).
			Str("uuid", task.FileUUID).
			Int("attempt", attempt).
			Int("retry_limit", e.retryLimit).
			Msg("Upload attempt failed")

		if ctx.Err() != nil {
			break
		}

		if attempt < e.retryLimit {
			core.ApplyDelay(ctx, e.policy.NextDelay(attempt))
		}
	}

	result.Status = core.StatusFailed
	result.Error = lastErr
	result.Duration = time.Since(start)
	if lastInfo != nil {
		result.AvgSpeed = averageSpeed(lastInfo.BytesSent, result.Duration)
	}

	return result
}

// attempt performs exactly one transfer, with its own sampler lifetime.
func (e *Executor) attempt(ctx context.Context, task core.UploadTask) (*core.StoreInfo, error) {
	src, err := os.Open(task.ResolvedPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", task.ResolvedPath)
	}
	defer fsx.CloseFile(src)

	if e.sampler != nil {
		watchCtx, stopSampler := context.WithCancel(ctx)
		defer stopSampler()
		go e.sampler.Watch(watchCtx, task, src)
	}

	return e.archive.Store(ctx, task, src)
}

func averageSpeed(bytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / d.Seconds()
}
