package progress

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/pkg/fsx"
)

const fdinfoDir = "/proc/self/fdinfo"

// NewProbe returns the best offset probe the runtime environment supports:
// kernel fdinfo introspection where procfs is available, otherwise a stub
// that reports core.ErrSamplerUnavailable so callers degrade to elapsed-time
// reporting.
func NewProbe() core.OffsetProbe {
	if _, exists := fsx.PathExists(fdinfoDir); exists {
		return &fdinfoProbe{}
	}
	return &unsupportedProbe{}
}

// NewUnsupportedProbe returns a probe that always reports
// core.ErrSamplerUnavailable. Tests use it to exercise the degraded path.
func NewUnsupportedProbe() core.OffsetProbe {
	return &unsupportedProbe{}
}

// fdinfoProbe reads the kernel's file position for an open descriptor from
// /proc/self/fdinfo. This is a best-effort, OS-specific signal: the value is
// whatever offset the descriptor's reads have advanced to, which is exactly
// how far the transfer has consumed the source file.
type fdinfoProbe struct{}

func (p *fdinfoProbe) Offset(f *os.File) (int64, error) {
	if f == nil {
		return 0, errors.Wrap(core.ErrSamplerUnavailable, "no open file to probe")
	}

	info, err := os.Open(fmt.Sprintf("%s/%d", fdinfoDir, f.Fd()))
	if err != nil {
		return 0, errors.Wrap(core.ErrSamplerUnavailable, err.Error())
	}
	defer fsx.CloseFile(info)

	scanner := bufio.NewScanner(info)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "pos:") {
			continue
		}

		pos, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "pos:")), 10, 64)
		if err != nil {
			return 0, errors.Wrap(core.ErrSamplerUnavailable, "unparseable fdinfo pos")
		}
		return pos, nil
	}

	return 0, errors.Wrap(core.ErrSamplerUnavailable, "fdinfo has no pos field")
}

type unsupportedProbe struct{}

func (p *unsupportedProbe) Offset(_ *os.File) (int64, error) {
	return 0, core.ErrSamplerUnavailable
}
