package transfer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/internal/progress"
)

// mockArchive fails a configured number of leading attempts, then succeeds.
type mockArchive struct {
	mu        sync.Mutex
	failures  int
	calls     int
	bytesSent int64
}

func (m *mockArchive) Info() string { return "mock-archive" }
func (m *mockArchive) Type() string { return "mock" }

func (m *mockArchive) Store(_ context.Context, _ core.UploadTask, _ *os.File) (*core.StoreInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls <= m.failures {
		return nil, errors.Errorf("archive returned status 503 (call %d)", m.calls)
	}
	return &core.StoreInfo{BytesSent: m.bytesSent}, nil
}

func testTask(t *testing.T) core.UploadTask {
	t.Helper()

	path := filepath.Join(t.TempDir(), "a.fastq.gz")
	require.NoError(t, os.WriteFile(path, []byte("read data!"), 0644))

	return core.UploadTask{
		FileName:     "a.fastq.gz",
		FileUUID:     "8f7f4a15-1f2e-4c8b-9a63-0f2b2f9a1c01",
		ProjectID:    "TEST-01",
		ResolvedPath: path,
		SizeBytes:    10,
	}
}

func TestRun_SucceedsOnNthAttempt(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		archive := &mockArchive{failures: n - 1, bytesSent: 10}
		e, err := New("exec-test", archive, 3, NewZeroPolicy(), nil)
		require.NoError(t, err)

		result := e.Run(context.Background(), testTask(t))

		assert.Equal(t, core.StatusSuccess, result.Status)
		assert.Equal(t, n, result.Attempts)
		assert.NoError(t, result.Error)
		assert.Greater(t, result.AvgSpeed, 0.0)
	}
}

func TestRun_FailsAfterRetryLimit(t *testing.T) {
	archive := &mockArchive{failures: 10}
	e, err := New("exec-test", archive, 3, NewZeroPolicy(), nil)
	require.NoError(t, err)

	result := e.Run(context.Background(), testTask(t))

	assert.Equal(t, core.StatusFailed, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.Error(t, result.Error)
	assert.Equal(t, 3, archive.calls, "no attempts beyond the retry limit")
}

func TestRun_UnresolvedTaskIsSkippedWithoutAttempt(t *testing.T) {
	archive := &mockArchive{}
	e, err := New("exec-test", archive, 3, NewZeroPolicy(), nil)
	require.NoError(t, err)

	task := core.UploadTask{FileName: "b.fastq.gz", FileUUID: "u2"}
	result := e.Run(context.Background(), task)

	assert.Equal(t, core.StatusSkipped, result.Status)
	assert.Equal(t, 0, result.Attempts)
	assert.True(t, errors.Is(result.Error, core.ErrFileNotFound))
	assert.Equal(t, 0, archive.calls, "no attempt may start without a resolved path")
}

func TestRun_MissingFileIsRetriedThenFailed(t *testing.T) {
	archive := &mockArchive{}
	e, err := New("exec-test", archive, 2, NewZeroPolicy(), nil)
	require.NoError(t, err)

	task := testTask(t)
	task.ResolvedPath = filepath.Join(t.TempDir(), "vanished.fastq.gz")

	result := e.Run(context.Background(), task)

	assert.Equal(t, core.StatusFailed, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 0, archive.calls, "store must not run without an open file")
}

func TestRun_DelayAppliedBetweenFailedAttempts(t *testing.T) {
	archive := &mockArchive{failures: 1, bytesSent: 10}
	e, err := New("exec-test", archive, 2, NewConstantPolicy(30*time.Millisecond), nil)
	require.NoError(t, err)

	start := time.Now()
	result := e.Run(context.Background(), testTask(t))

	assert.Equal(t, core.StatusSuccess, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRun_CancelledContextStopsRetrying(t *testing.T) {
	archive := &mockArchive{failures: 10}
	e, err := New("exec-test", archive, 5, NewZeroPolicy(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := e.Run(ctx, testTask(t))

	assert.Equal(t, core.StatusFailed, result.Status)
	assert.Equal(t, 1, result.Attempts, "a cancelled run stops after the in-flight attempt")
}

func TestRun_SamplerObservesAttempt(t *testing.T) {
	sampler := progress.New(progress.NewUnsupportedProbe(), time.Millisecond)

	var mu sync.Mutex
	sampleCount := 0
	sampler.OnSample(func(core.ProgressSample) {
		mu.Lock()
		defer mu.Unlock()
		sampleCount++
	})

	// a slow archive gives the sampler time to tick
	archive := &slowArchive{delay: 30 * time.Millisecond}
	e, err := New("exec-test", archive, 1, NewZeroPolicy(), sampler)
	require.NoError(t, err)

	result := e.Run(context.Background(), testTask(t))
	assert.Equal(t, core.StatusSuccess, result.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, sampleCount, 0, "sampler should have observed the attempt")
}

type slowArchive struct {
	delay time.Duration
}

func (s *slowArchive) Info() string { return "slow-archive" }
func (s *slowArchive) Type() string { return "mock" }

func (s *slowArchive) Store(ctx context.Context, task core.UploadTask, _ *os.File) (*core.StoreInfo, error) {
	core.ApplyDelay(ctx, s.delay)
	return &core.StoreInfo{BytesSent: task.SizeBytes}, nil
}

func TestNew_Validation(t *testing.T) {
	_, err := New("x", nil, 3, NewZeroPolicy(), nil)
	assert.Error(t, err)

	_, err = New("x", &mockArchive{}, 0, NewZeroPolicy(), nil)
	assert.Error(t, err)

	_, err = New("x", &mockArchive{}, 3, nil, nil)
	assert.Error(t, err)
}

func TestConstantPolicy(t *testing.T) {
	p := NewConstantPolicy(30 * time.Second)
	// the delay is fixed regardless of attempt number, with no jitter
	assert.Equal(t, 30*time.Second, p.NextDelay(1))
	assert.Equal(t, 30*time.Second, p.NextDelay(2))
	assert.Equal(t, 30*time.Second, p.NextDelay(7))

	assert.Equal(t, time.Duration(0), NewZeroPolicy().NextDelay(1))
}
