package transfer

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/seqarc/tern/internal/core"
)

// constantPolicy applies the same delay after every failed attempt, with no
// jitter. This mirrors the archive endpoint's documented retry expectations;
// the policy interface exists so tests can substitute a zero-delay policy.
type constantPolicy struct {
	b *backoff.ConstantBackOff
}

// NewConstantPolicy returns a BackoffPolicy with a fixed inter-attempt delay.
func NewConstantPolicy(delay time.Duration) core.BackoffPolicy {
	return &constantPolicy{b: backoff.NewConstantBackOff(delay)}
}

// NewZeroPolicy returns a BackoffPolicy with no delay between attempts.
func NewZeroPolicy() core.BackoffPolicy {
	return NewConstantPolicy(0)
}

func (p *constantPolicy) NextDelay(_ int) time.Duration {
	return p.b.NextBackOff()
}
