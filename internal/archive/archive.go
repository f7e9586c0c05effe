package archive

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	// TypeHTTP is the archive's native HTTP submission API.
	TypeHTTP = "http"
	// TypeS3 is an S3-compatible staging bucket.
	TypeS3 = "s3"
)

// handler carries the identity shared by all archive backends.
type handler struct {
	id          string
	archiveType string
}

// Info returns the unique identifier of the backend instance.
func (h *handler) Info() string {
	return h.id
}

// Type returns the backend type.
func (h *handler) Type() string {
	return h.archiveType
}

// ReadToken loads the plain-text credential from a token file. The contents
// are opaque to the uploader; they are read once and passed through verbatim.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read token file %s", path)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.Errorf("token file %s is empty", path)
	}

	return token, nil
}
