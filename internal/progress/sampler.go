package progress

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/pkg/logx"
)

// Sampler observes an in-flight transfer attempt from the outside, emitting
// advisory progress estimates on a fixed interval. It never cooperates with
// the transfer call itself: the only inputs are the source file's kernel read
// offset (when the probe supports it) and the wall clock.
//
// Notes:
//   - Samples are for human consumption only; the sampler has no influence on
//     the attempt's classification and its failures are swallowed.
//   - Watch returns the moment its context is cancelled, so a sampler never
//     outlives its attempt.
type Sampler struct {
	probe    core.OffsetProbe
	interval time.Duration

	// onSample, when set, receives every emitted sample. Tests use it to
	// assert on the sample stream.
	onSample func(core.ProgressSample)
}

// New creates a Sampler that polls the given probe on the given interval.
func New(probe core.OffsetProbe, interval time.Duration) *Sampler {
	return &Sampler{probe: probe, interval: interval}
}

// OnSample registers a callback invoked for every emitted sample.
func (s *Sampler) OnSample(fn func(core.ProgressSample)) {
	s.onSample = fn
}

// Watch samples the attempt until ctx is cancelled. It is meant to run in its
// own goroutine alongside the blocking transfer call.
func (s *Sampler) Watch(ctx context.Context, task core.UploadTask, src *os.File) {
	start := time.Now()
	lastPercent := 0

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sample := s.estimate(now, start, task.SizeBytes, src, &lastPercent)

			if s.onSample != nil {
				s.onSample(sample)
			}

			s.log(task, sample)
		}
	}
}

// estimate builds one sample. When the probe cannot report an offset the
// sample carries elapsed time only; a percentage is never fabricated.
func (s *Sampler) estimate(now, start time.Time, total int64, src *os.File, lastPercent *int) core.ProgressSample {
	elapsed := now.Sub(start)
	sample := core.ProgressSample{
		Timestamp: now,
		Elapsed:   elapsed,
	}

	offset, err := s.probe.Offset(src)
	if err != nil || total <= 0 {
		return sample
	}

	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}

	percent := int(offset * 100 / total)
	// the kernel offset can wobble backwards across transport retries;
	// reported percent stays monotonic within one attempt
	if percent < *lastPercent {
		percent = *lastPercent
	}
	*lastPercent = percent

	sample.HasOffset = true
	sample.Bytes = offset
	sample.Percent = percent
	if elapsed > 0 {
		sample.Speed = float64(offset) / elapsed.Seconds()
	}

	if percent > 0 && percent < 100 {
		sample.ETA = time.Duration(float64(elapsed) * float64(100-percent) / float64(percent))
		sample.HasETA = true
	}

	return sample
}

func (s *Sampler) log(task core.UploadTask, sample core.ProgressSample) {
	ev := logx.As().Info().
		Str("file_name", task.FileName).
		Dur("elapsed", sample.Elapsed.Round(time.Second))

	if !sample.HasOffset {
		ev.Msg("Transfer in progress")
		return
	}

	ev = ev.
		Int64("bytes", sample.Bytes).
		Int("percent", sample.Percent).
		Str("speed", formatSpeed(sample.Speed))
	if sample.HasETA {
		ev = ev.Dur("eta", sample.ETA.Round(time.Second))
	}
	ev.Msg("Transfer progress")
}

func formatSpeed(bytesPerSec float64) string {
	switch {
	case bytesPerSec >= 1<<20:
		return fmt.Sprintf("%.1f MiB/s", bytesPerSec/(1<<20))
	case bytesPerSec >= 1<<10:
		return fmt.Sprintf("%.1f KiB/s", bytesPerSec/(1<<10))
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	}
}
