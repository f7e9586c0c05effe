package locator

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/pkg/logx"
)

// DefaultSubdirs are the well-known subdirectories conventionally used for
// sequence data, probed before anything else.
var DefaultSubdirs = []string{"fastq", "fastq_pass", "bam", "cram", "vcf"}

// Locator resolves a logical file name to an absolute path by probing an
// ordered list of candidate locations under a single base root.
//
// Probe order:
//  1. each well-known subdirectory of the root
//  2. the root itself
//  3. a recursive descent from the root
//
// The recursive phase is the costly path and never runs when an earlier phase
// already matched.
type Locator struct {
	root    string
	subdirs []string

	// walkFn performs the recursive phase. It is a field so tests can count
	// or stub recursive descents.
	walkFn func(root string, fn filepath.WalkFunc) error
}

// New creates a Locator for the given base root. A nil subdirs slice selects
// DefaultSubdirs; an explicit empty slice disables the subdirectory phase.
func New(root string, subdirs []string) *Locator {
	if subdirs == nil {
		subdirs = DefaultSubdirs
	}

	return &Locator{
		root:    root,
		subdirs: subdirs,
		walkFn:  filepath.Walk,
	}
}

// Locate resolves fileName to an absolute path and its size in bytes.
// It returns core.ErrFileNotFound after all phases are exhausted.
func (l *Locator) Locate(fileName string) (string, int64, error) {
	// phase 1: well-known sequence data subdirectories
	for _, sub := range l.subdirs {
		if path, size, ok := l.probe(filepath.Join(l.root, sub, fileName)); ok {
			logx.As().Debug().
				Str("file_name", fileName).
				Str("path", path).
				Str("subdir", sub).
				Msg("File found in well-known subdirectory")
			return path, size, nil
		}
	}

	// phase 2: the base root itself
	if path, size, ok := l.probe(filepath.Join(l.root, fileName)); ok {
		logx.As().Debug().
			Str("file_name", fileName).
			Str("path", path).
			Msg("File found in base root")
		return path, size, nil
	}

	// phase 3: recursive descent, only when nothing matched so far
	path, size, err := l.recursiveSearch(fileName)
	if err != nil {
		return "", 0, err
	}

	logx.As().Debug().
		Str("file_name", fileName).
		Str("path", path).
		Msg("File found by recursive search")

	return path, size, nil
}

// probe checks a single candidate path, accepting only regular files.
func (l *Locator) probe(candidate string) (string, int64, bool) {
	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return "", 0, false
	}

	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", 0, false
	}

	return abs, info.Size(), true
}

// recursiveSearch walks the root and returns the first regular file whose
// basename equals fileName. Walk order is lexical, so the result is
// deterministic for a given tree.
func (l *Locator) recursiveSearch(fileName string) (string, int64, error) {
	var foundPath string
	var foundSize int64

	err := l.walkFn(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				logx.As().Warn().
					Str("path", path).
					Msg("File seems to have been deleted during search, ignoring error...")
				return nil
			}
			return err
		}

		if !info.Mode().IsRegular() || filepath.Base(path) != fileName {
			return nil
		}

		foundPath = path
		foundSize = info.Size()
		return filepath.SkipAll
	})
	if err != nil {
		return "", 0, errors.Wrapf(err, "recursive search under %s failed", l.root)
	}

	if foundPath == "" {
		return "", 0, errors.Wrapf(core.ErrFileNotFound, "%s not found under %s", fileName, l.root)
	}

	abs, err := filepath.Abs(foundPath)
	if err != nil {
		return "", 0, errors.Wrapf(err, "failed to resolve absolute path for %s", foundPath)
	}

	return abs, foundSize, nil
}
