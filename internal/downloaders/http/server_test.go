package httpdl

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// rangeServer serves one payload with optional byte range support and
// records every request it sees.
type rangeServer struct {
	*httptest.Server
	payload      []byte
	ranges       bool
	ignoreRanges bool
	headStatus   int
	etag         string // sent on GET; If-Range must match it
	headETag     string // sent on HEAD instead of etag when set
	overlongAt   int64  // once, answer the range starting here with the rest of the file

	mu       sync.Mutex
	heads    int
	gets     int
	rangeHdr []string
}

func newRangeServer(t *testing.T, payload []byte, ranges bool) *rangeServer {
	t.Helper()
	rs := &rangeServer{payload: payload, ranges: ranges}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.handle))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *rangeServer) handle(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	switch r.Method {
	case http.MethodHead:
		rs.heads++
	case http.MethodGet:
		rs.gets++
		if h := r.Header.Get("Range"); h != "" {
			rs.rangeHdr = append(rs.rangeHdr, h)
		}
	}
	rs.mu.Unlock()

	if r.Method == http.MethodHead && rs.headStatus != 0 {
		w.WriteHeader(rs.headStatus)
		return
	}
	if rs.ranges {
		w.Header().Set("Accept-Ranges", "bytes")
	}
	etag := rs.etag
	if r.Method == http.MethodHead && rs.headETag != "" {
		etag = rs.headETag
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	rangeHeader := r.Header.Get("Range")
	if ifRange := r.Header.Get("If-Range"); ifRange != "" && ifRange != rs.etag {
		rangeHeader = ""
	}
	if rangeHeader == "" || !rs.ranges || rs.ignoreRanges {
		w.Header().Set("Content-Length", strconv.Itoa(len(rs.payload)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(rs.payload)
		}
		return
	}
	start, end, ok := parseRange(rangeHeader, int64(len(rs.payload)))
	if !ok {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(rs.payload)))
	rs.mu.Lock()
	overlong := rs.overlongAt > 0 && start == rs.overlongAt
	if overlong {
		rs.overlongAt = 0
	}
	rs.mu.Unlock()
	if overlong {
		w.WriteHeader(http.StatusPartialContent)
		w.Write(rs.payload[start:])
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(rs.payload[start : end+1])
}

func (rs *rangeServer) counts() (heads, gets int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.heads, rs.gets
}

func (rs *rangeServer) rangeHeaders() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.rangeHdr...)
}

func parseRange(header string, size int64) (int64, int64, bool) {
	rng, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, false
	}
	from, to, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start >= size {
		return 0, 0, false
	}
	end := size - 1
	if to != "" {
		if end, err = strconv.ParseInt(to, 10, 64); err != nil {
			return 0, 0, false
		}
		end = min(end, size-1)
	}
	return start, end, start <= end
}

func testPayload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	return data
}
