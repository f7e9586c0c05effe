package archive

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/seqarc/tern/internal/config"
	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/pkg/logx"
)

// headerUploadOffset carries the byte offset a partial transfer reached. The
// archive reports it on HEAD and the client echoes it on PUT.
const headerUploadOffset = "Upload-Offset"

// httpHandler uploads files to the archive's submission API:
// PUT {endpoint}/v0/submission/{project_path}/files/{file_uuid}.
//
// Resumable semantics: before each transfer the handler asks the archive how
// many bytes it already holds for the file and continues from that offset
// instead of restarting from zero. The archive is otherwise opaque; the only
// contract is the URL layout, the bearer token, and a 2xx status on success.
type httpHandler struct {
	*handler
	client   *retryablehttp.Client
	endpoint string
	token    string
}

// NewHTTP creates the archive's native HTTP backend.
//
// The client applies a connect timeout but no total-time budget, since large
// genomic files may take arbitrarily long to transfer. Transient network
// drops are absorbed by a connection-level retry layer (TransportRetries,
// short waits) that sits beneath the executor's attempt-level retry loop.
func NewHTTP(id string, cfg *config.ArchiveConfig, token string) (core.Archive, error) {
	connectTimeout, err := time.ParseDuration(cfg.ConnectTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse connect timeout")
	}

	retryWait, err := time.ParseDuration(cfg.TransportRetryWait)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse transport retry wait")
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		},
		Timeout: 0, // total time is unbounded
	}
	client.Logger = nil
	client.RetryMax = cfg.TransportRetries
	client.RetryWaitMin = retryWait
	client.RetryWaitMax = retryWait
	// hand the final response back once transport retries are spent, so the
	// status check below classifies the failure instead of a generic give-up
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	logx.As().Debug().
		Str("endpoint", cfg.Endpoint).
		Dur("connect_timeout", connectTimeout).
		Int("transport_retries", cfg.TransportRetries).
		Msg("Archive HTTP client created")

	return &httpHandler{
		handler:  &handler{id: id, archiveType: TypeHTTP},
		client:   client,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    token,
	}, nil
}

// Store performs one resumable transfer of the task's file.
func (h *httpHandler) Store(ctx context.Context, task core.UploadTask, src *os.File) (*core.StoreInfo, error) {
	url := h.fileURL(task)

	offset := h.remoteOffset(ctx, url)
	if offset < 0 || offset > task.SizeBytes {
		logx.As().Warn().
			Str("file_name", task.FileName).
			Int64("offset", offset).
			Int64("size", task.SizeBytes).
			Msg("Archive reported an implausible offset, restarting from zero")
		offset = 0
	}

	if offset > 0 && offset == task.SizeBytes {
		logx.As().Info().
			Str("file_name", task.FileName).
			Str("uuid", task.FileUUID).
			Msg("Archive already holds the complete file, nothing to send")
		return &core.StoreInfo{BytesSent: 0, Offset: offset, HTTPStatus: http.StatusOK}, nil
	}

	if offset > 0 {
		logx.As().Info().
			Str("file_name", task.FileName).
			Str("uuid", task.FileUUID).
			Int64("offset", offset).
			Int64("size", task.SizeBytes).
			Msg("Resuming partial transfer")
	}

	// The body reader is a function so a connection-level retry rewinds to
	// the resume offset, not to the start of the file. Reads go through the
	// caller's handle, which keeps the kernel read offset observable for
	// progress sampling.
	body := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		if _, err := src.Seek(offset, io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "failed to seek to resume offset")
		}
		return src, nil
	})

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build upload request")
	}

	req.ContentLength = task.SizeBytes - offset
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(headerUploadOffset, strconv.FormatInt(offset, 10))
	if task.SizeBytes > 0 {
		req.Header.Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", offset, task.SizeBytes-1, task.SizeBytes))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "upload request for %s failed", task.FileName)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("archive returned status %d for %s", resp.StatusCode, task.FileName)
	}

	return &core.StoreInfo{
		BytesSent:  task.SizeBytes - offset,
		Offset:     offset,
		HTTPStatus: resp.StatusCode,
	}, nil
}

// remoteOffset asks the archive how many bytes it already holds for the file.
// Any failure here means starting from zero; the probe is best-effort and
// must never fail the attempt.
func (h *httpHandler) remoteOffset(ctx context.Context, url string) int64 {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0
	}
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		logx.As().Debug().Err(err).Str("url", url).Msg("Offset query failed, starting from zero")
		return 0
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0
	}

	offset, err := strconv.ParseInt(resp.Header.Get(headerUploadOffset), 10, 64)
	if err != nil {
		return 0
	}

	return offset
}

// fileURL builds the submission URL for a task. The project identifier's
// first separator becomes a path segment boundary.
func (h *httpHandler) fileURL(task core.UploadTask) string {
	return fmt.Sprintf("%s/v0/submission/%s/files/%s",
		h.endpoint, core.ProjectPath(task.ProjectID), task.FileUUID)
}
