package httpdl

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/splitdl/internal/utils"
)

// DownloadJob is what one attempt learns about a resource before fetching.
type DownloadJob struct {
	URL            string
	OutputPath     string
	TotalSize      int64 // 0 when the server omits Content-Length
	SupportsRanges bool
	ETag           string
	LastModified   string
}

// Probe sends a HEAD request for link. Servers that do not implement HEAD
// yield an unknown size without range support rather than an error.
func Probe(ctx context.Context, client utils.HTTPDoer, link, outputPath string) (*DownloadJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HEAD request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: link, Err: err}
	}
	defer resp.Body.Close()

	job := &DownloadJob{URL: link, OutputPath: outputPath}
	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		log.Debug().Str("op", "http/probe").Str("url", link).Int("status", resp.StatusCode).Msg("HEAD not supported, using sequential download")
		return job, nil
	case resp.StatusCode >= 400:
		return nil, &HTTPStatusError{URL: link, StatusCode: resp.StatusCode}
	}

	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil && size > 0 {
			job.TotalSize = size
		}
	}
	job.SupportsRanges = strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes")
	job.ETag = resp.Header.Get("ETag")
	job.LastModified = resp.Header.Get("Last-Modified")
	log.Debug().Str("op", "http/probe").Str("url", link).Int64("size", job.TotalSize).Bool("ranges", job.SupportsRanges).Str("etag", job.ETag).Msg("Probed resource")
	return job, nil
}

// RangeValidator is the strong ETag, or Last-Modified when the ETag is
// missing or weak. Empty when the server sends neither.
func (j *DownloadJob) RangeValidator() string {
	if j.ETag != "" && !strings.HasPrefix(j.ETag, "W/") {
		return j.ETag
	}
	return j.LastModified
}

// OutputComplete reports whether outputPath already holds totalSize bytes.
// An unknown size never counts as complete.
func OutputComplete(outputPath string, totalSize int64) bool {
	if totalSize <= 0 {
		return false
	}
	info, err := os.Stat(outputPath)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Size() == totalSize
}
