package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqarc/tern/internal/config"
	"github.com/seqarc/tern/internal/core"
)

// archiveRecorder plays the submission API: it remembers how many bytes it
// holds per URL, reports the offset on HEAD and appends PUT bodies.
type archiveRecorder struct {
	mu       sync.Mutex
	held     map[string][]byte
	puts     int
	failPuts int // number of leading PUTs answered with 503

	lastAuth    string
	lastOffset  string
	lastRange   string
	lastPutPath string
}

func newArchiveRecorder() *archiveRecorder {
	return &archiveRecorder{held: map[string][]byte{}}
}

func (a *archiveRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastAuth = r.Header.Get("Authorization")

	switch r.Method {
	case http.MethodHead:
		w.Header().Set("Upload-Offset", strconv.Itoa(len(a.held[r.URL.Path])))
		w.WriteHeader(http.StatusOK)

	case http.MethodPut:
		a.puts++
		a.lastPutPath = r.URL.Path
		a.lastOffset = r.Header.Get("Upload-Offset")
		a.lastRange = r.Header.Get("Content-Range")

		body, _ := io.ReadAll(r.Body)
		if a.puts <= a.failPuts {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		a.held[r.URL.Path] = append(a.held[r.URL.Path], body...)
		w.WriteHeader(http.StatusCreated)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *archiveRecorder) heldBytes(path string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.held[path]...)
}

func newTestHTTPHandler(t *testing.T, endpoint string, transportRetries int) core.Archive {
	t.Helper()

	h, err := NewHTTP("archive-test", &config.ArchiveConfig{
		Backend:            TypeHTTP,
		Endpoint:           endpoint,
		ConnectTimeout:     "5s",
		TransportRetries:   transportRetries,
		TransportRetryWait: "1ms",
	}, "secret-token")
	require.NoError(t, err)
	return h
}

func writeSource(t *testing.T, content string) *os.File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "a.fastq.gz")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func httpTestTask(size int64) core.UploadTask {
	return core.UploadTask{
		FileName:  "a.fastq.gz",
		FileUUID:  "8f7f4a15-1f2e-4c8b-9a63-0f2b2f9a1c01",
		ProjectID: "TEST-01",
		SizeBytes: size,
	}
}

func TestHTTPStore_URLLayoutAndHeaders(t *testing.T) {
	recorder := newArchiveRecorder()
	server := httptest.NewServer(recorder)
	defer server.Close()

	h := newTestHTTPHandler(t, server.URL, 0)
	src := writeSource(t, "read data!")

	info, err := h.Store(context.Background(), httpTestTask(10), src)
	require.NoError(t, err)

	// the first dash in the project id becomes a path boundary
	assert.Equal(t,
		"/v0/submission/TEST/01/files/8f7f4a15-1f2e-4c8b-9a63-0f2b2f9a1c01",
		recorder.lastPutPath)
	assert.Equal(t, "Bearer secret-token", recorder.lastAuth)
	assert.Equal(t, "0", recorder.lastOffset)
	assert.Equal(t, "bytes 0-9/10", recorder.lastRange)

	assert.Equal(t, int64(10), info.BytesSent)
	assert.Equal(t, int64(0), info.Offset)
	assert.Equal(t, http.StatusCreated, info.HTTPStatus)
	assert.Equal(t, []byte("read data!"), recorder.heldBytes(recorder.lastPutPath))
}

func TestHTTPStore_ResumesFromReportedOffset(t *testing.T) {
	recorder := newArchiveRecorder()
	server := httptest.NewServer(recorder)
	defer server.Close()

	// the archive already holds the first 4 bytes from an interrupted run
	path := "/v0/submission/TEST/01/files/8f7f4a15-1f2e-4c8b-9a63-0f2b2f9a1c01"
	recorder.held[path] = []byte("read")

	h := newTestHTTPHandler(t, server.URL, 0)
	src := writeSource(t, "read data!")

	info, err := h.Store(context.Background(), httpTestTask(10), src)
	require.NoError(t, err)

	// only size minus the completed prefix crosses the wire
	assert.Equal(t, int64(6), info.BytesSent)
	assert.Equal(t, int64(4), info.Offset)
	assert.Equal(t, "4", recorder.lastOffset)
	assert.Equal(t, "bytes 4-9/10", recorder.lastRange)
	assert.Equal(t, []byte("read data!"), recorder.heldBytes(path))
}

func TestHTTPStore_CompleteFileShortCircuits(t *testing.T) {
	recorder := newArchiveRecorder()
	server := httptest.NewServer(recorder)
	defer server.Close()

	path := "/v0/submission/TEST/01/files/8f7f4a15-1f2e-4c8b-9a63-0f2b2f9a1c01"
	recorder.held[path] = []byte("read data!")

	h := newTestHTTPHandler(t, server.URL, 0)
	src := writeSource(t, "read data!")

	info, err := h.Store(context.Background(), httpTestTask(10), src)
	require.NoError(t, err)

	assert.Equal(t, int64(0), info.BytesSent)
	assert.Equal(t, int64(10), info.Offset)
	assert.Equal(t, 0, recorder.puts, "a complete file must not be re-sent")
}

func TestHTTPStore_ImplausibleOffsetRestartsFromZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Upload-Offset", "9999") // beyond the file size
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "0", r.Header.Get("Upload-Offset"))
		body, _ := io.ReadAll(r.Body)
		assert.Len(t, body, 10)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h := newTestHTTPHandler(t, server.URL, 0)
	src := writeSource(t, "read data!")

	info, err := h.Store(context.Background(), httpTestTask(10), src)
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.BytesSent)
	assert.Equal(t, int64(0), info.Offset)
}

func TestHTTPStore_NonSuccessStatusIsAnError(t *testing.T) {
	recorder := newArchiveRecorder()
	recorder.failPuts = 100
	server := httptest.NewServer(recorder)
	defer server.Close()

	h := newTestHTTPHandler(t, server.URL, 0)
	src := writeSource(t, "read data!")

	_, err := h.Store(context.Background(), httpTestTask(10), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPStore_TransportRetriesBeneathAttempt(t *testing.T) {
	recorder := newArchiveRecorder()
	recorder.failPuts = 2
	server := httptest.NewServer(recorder)
	defer server.Close()

	h := newTestHTTPHandler(t, server.URL, 3)
	src := writeSource(t, "read data!")

	// a single Store call absorbs two transient failures internally
	info, err := h.Store(context.Background(), httpTestTask(10), src)
	require.NoError(t, err)

	assert.Equal(t, 3, recorder.puts)
	assert.Equal(t, int64(10), info.BytesSent)
	// the body was rewound for each retry, so the archive holds one clean copy
	assert.Equal(t, []byte("read data!"), recorder.heldBytes(recorder.lastPutPath))
}

func TestReadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  secret-token\n"), 0600))

	token, err := ReadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0600))
	_, err = ReadToken(empty)
	assert.Error(t, err)

	_, err = ReadToken(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestHandlerInfoAndType(t *testing.T) {
	recorder := newArchiveRecorder()
	server := httptest.NewServer(recorder)
	defer server.Close()

	h := newTestHTTPHandler(t, server.URL, 0)
	assert.Equal(t, TypeHTTP, h.Type())
	assert.Contains(t, h.Info(), "archive-test")
}
