package core

import (
	"context"
	"os"
	"time"
)

// Status is the terminal classification of an upload task.
type Status string

const (
	// StatusSuccess means the archive acknowledged the file with a 2xx response.
	StatusSuccess Status = "success"
	// StatusFailed means every permitted attempt was exhausted without a 2xx response.
	StatusFailed Status = "failed"
	// StatusSkipped means the task never started an attempt (e.g. the file could not be located).
	StatusSkipped Status = "skipped"
)

// UploadTask is one file's end-to-end unit of upload work. It is created once
// per manifest entry matched to a discovered file and is immutable afterwards.
//
// Fields:
//   - FileName: The logical file name, unique within a run.
//   - FileUUID: The archive identifier assigned to the file by the manifest.
//   - ProjectID: The archive project the file belongs to.
//   - ResolvedPath: The absolute local path of the file, or empty when discovery failed.
//   - SizeBytes: The size of the resolved file in bytes (0 when unresolved).
type UploadTask struct {
	FileName     string
	FileUUID     string
	ProjectID    string
	ResolvedPath string
	SizeBytes    int64
}

// UploadResult is the single record produced for each UploadTask. It is
// immutable once written; the report aggregator persists nothing else.
//
// Notes:
//   - Attempts is 0 for tasks that never started a transfer.
//   - AvgSpeed is in bytes per second across the final attempt.
type UploadResult struct {
	FileName     string
	FileUUID     string
	ResolvedPath string
	Status       Status
	Attempts     int
	Duration     time.Duration
	AvgSpeed     float64
	Error        error
}

// StoreInfo describes the outcome of one successful archive store operation.
type StoreInfo struct {
	// BytesSent is the number of bytes transferred during this attempt
	// (size minus any previously acknowledged offset).
	BytesSent int64
	// Offset is the byte offset the transfer resumed from.
	Offset int64
	// HTTPStatus is the status code returned by the archive, when applicable.
	HTTPStatus int
}

// Archive defines the interface for a remote archive backend that stores one
// file per call.
//
// Methods:
//   - Info: Returns a unique identifier of the backend instance.
//   - Type: Returns the backend type (e.g. "http", "s3").
//   - Store: Transfers the task's file, reading from the provided open handle.
//
// Notes:
//   - Store performs exactly one transfer attempt; retrying is the caller's job.
//   - Implementations must honor context cancellation during the transfer.
//   - The caller owns src and keeps it open for the duration of the call so
//     that progress observers can sample its read offset.
type Archive interface {
	Info() string
	Type() string
	Store(ctx context.Context, task UploadTask, src *os.File) (*StoreInfo, error)
}

// Runner executes one task to its terminal classification. It exists so the
// dispatcher can be exercised with mock executors in tests.
type Runner interface {
	Run(ctx context.Context, task UploadTask) UploadResult
}

// BackoffPolicy yields the delay to apply after a failed attempt before the
// next one starts.
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

// OffsetProbe reports how far into the source file a transfer has advanced,
// without any cooperation from the transfer call itself.
//
// Notes:
//   - Implementations return ErrSamplerUnavailable when the runtime
//     environment offers no offset introspection; callers must degrade to
//     elapsed-time-only reporting rather than fabricating progress.
type OffsetProbe interface {
	Offset(f *os.File) (int64, error)
}

// ProgressSample is one advisory observation of an in-flight attempt. Samples
// are consumed only for human-facing output, never for control decisions.
type ProgressSample struct {
	Timestamp time.Time
	Elapsed   time.Duration
	// Bytes is the estimated number of bytes transferred so far.
	Bytes int64
	// Speed is the instantaneous estimate in bytes per second.
	Speed float64
	// Percent is in [0,100]; valid only when HasOffset is true.
	Percent int
	// ETA is the remaining-time estimate; valid only when HasETA is true.
	ETA       time.Duration
	HasOffset bool
	HasETA    bool
}
