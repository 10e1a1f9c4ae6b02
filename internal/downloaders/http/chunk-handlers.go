package httpdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/splitdl/internal/metrics"
	"github.com/tanq16/splitdl/internal/progress"
	"github.com/tanq16/splitdl/internal/utils"
)

// FetchRequest describes one chunk fetch into its temp file.
type FetchRequest struct {
	Client         utils.HTTPDoer
	URL            string
	Chunk          Chunk
	Ranged         bool // the plan splits the file; always send a Range header
	SupportsRanges bool // the server advertised byte ranges at probe time
	TempPath       string
	Resume         bool
	Validator      string // If-Range value sent with resumed requests
	BufferSize     int
	Progress       *progress.State
}

// FetchChunk downloads req.Chunk into req.TempPath. With Resume set, an
// existing temp file is continued from its length, and one that already
// holds the whole chunk is accepted without a request.
func FetchChunk(ctx context.Context, req FetchRequest) error {
	logger := log.With().Str("op", "http/chunk-handlers").Int("chunkId", req.Chunk.Index).Logger()
	expectedSize := req.Chunk.Size()
	resumeOffset := int64(0)
	if req.Resume {
		if fileInfo, err := os.Stat(req.TempPath); err == nil {
			resumeOffset = fileInfo.Size()
		}
	}
	// Writes stop at the chunk end, so a full-length file holds exactly this chunk
	if resumeOffset > 0 && expectedSize >= 0 && resumeOffset >= expectedSize {
		logger.Debug().Int64("size", resumeOffset).Msg("Chunk already downloaded, skipping")
		req.Progress.Add(expectedSize)
		metrics.ChunkFetches.WithLabelValues("skipped").Inc()
		return nil
	}
	canResume := resumeOffset > 0 && (req.Ranged || req.SupportsRanges)
	if !canResume {
		resumeOffset = 0
	}

	err := fetchRange(ctx, req, resumeOffset, logger)
	if err != nil {
		metrics.ChunkFetches.WithLabelValues("failed").Inc()
		return err
	}
	if resumeOffset > 0 {
		metrics.ChunkFetches.WithLabelValues("resumed").Inc()
	} else {
		metrics.ChunkFetches.WithLabelValues("fetched").Inc()
	}
	return nil
}

func fetchRange(ctx context.Context, req FetchRequest, resumeOffset int64, logger zerolog.Logger) error {
	flag := os.O_WRONLY | os.O_CREATE
	if resumeOffset > 0 {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	tempFile, err := os.OpenFile(req.TempPath, flag, 0644)
	if err != nil {
		return &IOError{Path: req.TempPath, Err: err}
	}
	defer tempFile.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return fmt.Errorf("error creating GET request: %w", err)
	}
	startByte := req.Chunk.Start + resumeOffset
	rangeSent := req.Ranged || resumeOffset > 0
	if rangeSent {
		rangeHeader := fmt.Sprintf("bytes=%d-", startByte)
		if req.Chunk.End >= 0 {
			rangeHeader = fmt.Sprintf("bytes=%d-%d", startByte, req.Chunk.End)
		}
		httpReq.Header.Set("Range", rangeHeader)
		logger.Debug().Str("range", rangeHeader).Msg("Sending range request")
	}
	ifRange := ""
	if resumeOffset > 0 && req.Validator != "" {
		ifRange = req.Validator
		httpReq.Header.Set("If-Range", ifRange)
	}
	httpReq.Header.Set("Connection", "keep-alive")
	resp, err := req.Client.Do(httpReq)
	if err != nil {
		return &ConnectionError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case rangeSent && resp.StatusCode == http.StatusPartialContent:
		if err := checkContentRange(resp.Header.Get("Content-Range"), startByte, req.Chunk.End); err != nil {
			return &HTTPStatusError{URL: req.URL, StatusCode: resp.StatusCode, Err: err}
		}
	case rangeSent && resp.StatusCode == http.StatusOK:
		wholeBody := req.Chunk.Start == 0 && (req.Chunk.End < 0 || resp.ContentLength < 0 || resp.ContentLength == req.Chunk.End+1)
		if !wholeBody {
			if ifRange != "" {
				return &HTTPStatusError{URL: req.URL, StatusCode: resp.StatusCode, Err: ErrRemoteChanged}
			}
			return &HTTPStatusError{URL: req.URL, StatusCode: resp.StatusCode, Err: ErrRangeIgnored}
		}
		if resumeOffset > 0 {
			// Full body for a resumed whole-file chunk, start over
			logger.Warn().Int64("offset", resumeOffset).Msg("Server ignored resume range, restarting chunk")
			if err := tempFile.Truncate(0); err != nil {
				return &IOError{Path: req.TempPath, Err: err}
			}
			resumeOffset = 0
			startByte = 0
		}
	case !rangeSent && resp.StatusCode >= 200 && resp.StatusCode < 300:
	default:
		return &HTTPStatusError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	if resumeOffset > 0 {
		req.Progress.Add(resumeOffset)
		logger.Debug().Int64("offset", resumeOffset).Msg("Resuming incomplete chunk")
	}
	bufferSize := req.BufferSize
	if bufferSize <= 0 {
		bufferSize = utils.DefaultBufferSize
	}
	buffer := make([]byte, bufferSize)
	// Never write past the chunk end; one extra byte detects an overlong body
	var body io.Reader = resp.Body
	remainingBytes := int64(-1)
	if req.Chunk.End >= 0 {
		remainingBytes = req.Chunk.End - startByte + 1
		body = io.LimitReader(resp.Body, remainingBytes+1)
	}
	newBytes := int64(0)
	for {
		bytesRead, readErr := body.Read(buffer)
		overflow := remainingBytes >= 0 && newBytes+int64(bytesRead) > remainingBytes
		if overflow {
			bytesRead = int(remainingBytes - newBytes)
		}
		if bytesRead > 0 {
			if _, writeErr := tempFile.Write(buffer[:bytesRead]); writeErr != nil {
				return &IOError{Path: req.TempPath, Err: writeErr}
			}
			newBytes += int64(bytesRead)
			req.Progress.Add(int64(bytesRead))
			metrics.BytesDownloaded.Add(float64(bytesRead))
		}
		if overflow {
			logger.Error().Int64("remainingBytes", remainingBytes).Msg("Response body longer than chunk")
			return &TransportError{
				Chunk: req.Chunk.Index,
				Err:   fmt.Errorf("%w: expected %d bytes", ErrLongBody, remainingBytes),
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return &TransportError{Chunk: req.Chunk.Index, Err: readErr}
		}
	}
	if remainingBytes >= 0 && newBytes != remainingBytes {
		logger.Error().Int64("remainingBytes", remainingBytes).Int64("newBytes", newBytes).Int64("resumeOffset", resumeOffset).Msg("Size mismatch on chunk download")
		return &TransportError{
			Chunk: req.Chunk.Index,
			Err:   fmt.Errorf("%w: expected %d bytes, got %d", ErrShortBody, remainingBytes, newBytes),
		}
	}
	if err := tempFile.Close(); err != nil {
		return &IOError{Path: req.TempPath, Err: err}
	}
	logger.Debug().Int64("downloadedThisSession", newBytes).Int64("resumeOffset", resumeOffset).Msg("Chunk download completed")
	return nil
}

// checkContentRange accepts "bytes first-last/total" only when first is the
// requested start and last stays inside the chunk.
func checkContentRange(header string, start, end int64) error {
	rng, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return fmt.Errorf("%w: %q", ErrContentRange, header)
	}
	rng, _, _ = strings.Cut(rng, "/")
	from, to, ok := strings.Cut(rng, "-")
	if !ok {
		return fmt.Errorf("%w: %q", ErrContentRange, header)
	}
	first, err := strconv.ParseInt(strings.TrimSpace(from), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrContentRange, header)
	}
	last, err := strconv.ParseInt(strings.TrimSpace(to), 10, 64)
	if err != nil || first != start || last < first || (end >= 0 && last > end) {
		return fmt.Errorf("%w: %q for bytes %d-%d", ErrContentRange, header, start, end)
	}
	return nil
}
