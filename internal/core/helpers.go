package core

import (
	"context"
	"strings"
	"time"

	"github.com/seqarc/tern/pkg/logx"
)

// ProjectPath maps a project identifier to its archive path form by turning
// the first separator into a path segment boundary (e.g. "TEST-01" becomes
// "TEST/01"). Identifiers without a separator are returned unchanged.
func ProjectPath(projectID string) string {
	return strings.Replace(projectID, "-", "/", 1)
}

// ApplyDelay blocks for the given duration or until the context is cancelled.
func ApplyDelay(ctx context.Context, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop() // Ensure the timer is stopped to release resources

		select {
		case <-timer.C:
			// proceed after delay
		case <-ctx.Done():
			logx.As().Warn().Msg("context cancelled during delay")
		}
	}
}
