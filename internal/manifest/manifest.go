package manifest

import (
	"encoding/json"
	"os"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/pkg/logx"
)

// Entry is one manifest record mapping a logical file name to its archive
// identifiers.
type Entry struct {
	FileName  string `json:"file_name"`
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
}

// Manifest is an immutable, loaded metadata document. It is safe for
// concurrent reads once constructed.
type Manifest struct {
	entries []Entry
	byName  map[string][]Entry
}

// wrappedDocument is the object-shaped manifest carrying entries under a
// "files" key.
type wrappedDocument struct {
	Files []Entry `json:"files"`
}

// Load reads and parses a manifest file.
//
// Parameters:
//   - path: The path to the JSON manifest document.
//
// Returns:
//   - The parsed Manifest, or an error if the document cannot be read or
//     matches neither accepted shape.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}

	return Parse(data)
}

// Parse builds a Manifest from raw JSON. Two shapes are accepted: a flat
// ordered list of entries, or an object carrying the entries under a "files"
// key. Entries with archive ids that do not parse as UUIDs are kept but
// logged, since the archive treats ids as opaque.
func Parse(data []byte) (*Manifest, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		var doc wrappedDocument
		if err2 := json.Unmarshal(data, &doc); err2 != nil || doc.Files == nil {
			return nil, errors.Wrap(err, "manifest is neither a flat entry list nor a files-wrapped object")
		}
		entries = doc.Files
	}

	byName := make(map[string][]Entry, len(entries))
	for _, e := range entries {
		if e.FileName == "" {
			return nil, errors.New("manifest entry is missing file_name")
		}

		if _, err := uuid.Parse(e.ID); err != nil {
			logx.As().Warn().
				Str("file_name", e.FileName).
				Str("id", e.ID).
				Msg("Manifest entry id is not a UUID")
		}

		byName[e.FileName] = append(byName[e.FileName], e)
	}

	return &Manifest{entries: entries, byName: byName}, nil
}

// Resolve returns the single entry whose file_name equals the requested name.
// Matching is exact string equality; zero or ambiguous matches yield
// core.ErrMetadataNotFound.
func (m *Manifest) Resolve(fileName string) (Entry, error) {
	matches := m.byName[fileName]
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Entry{}, errors.Wrapf(core.ErrMetadataNotFound, "no manifest entry for %s", fileName)
	default:
		return Entry{}, errors.Wrapf(core.ErrMetadataNotFound, "%d manifest entries for %s", len(matches), fileName)
	}
}

// Entries returns all manifest entries in document order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Filter returns the entries whose file_name matches the given glob pattern,
// preserving document order. An empty pattern selects everything.
func (m *Manifest) Filter(pattern string) ([]Entry, error) {
	if pattern == "" {
		return m.Entries(), nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile glob pattern '%s'", pattern)
	}

	var out []Entry
	for _, e := range m.entries {
		if g.Match(e.FileName) {
			out = append(out, e)
		}
	}

	return out, nil
}
