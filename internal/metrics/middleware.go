package metrics

import (
	"net/http"
	"regexp"
	"time"
)

var (
	numericSegment = regexp.MustCompile(`/\d+(/|$)`)
	addressSegment = regexp.MustCompile(`/0[xX][0-9a-fA-F]{40}(/|$)`)
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.written {
		return
	}
	r.statusCode = code
	r.written = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.statusCode = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

// Middleware records request count and latency by method, normalized path
// and status. A panicking handler is recorded as a 500 and answered with one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil && !rec.written {
				rec.WriteHeader(http.StatusInternalServerError)
			} else if p != nil {
				rec.statusCode = http.StatusInternalServerError
			}

			status := http.StatusText(rec.statusCode)
			if status == "" {
				status = "UNKNOWN"
			}
			path := normalizePath(r.URL.Path)
			RecordRequest(r.Method, path, status)
			RecordRequestDuration(r.Method, path, status, time.Since(start).Seconds())
		}()

		next.ServeHTTP(rec, r)
	})
}

// normalizePath replaces ids and addresses in a request path so it can be
// used as a metric label.
//
//	/api/listings/12 -> /api/listings/:id
//	/api/accounts/0xAb...9f/access/3 -> /api/accounts/:address/access/:id
func normalizePath(path string) string {
	path = addressSegment.ReplaceAllString(path, "/:address$1")
	// Adjacent segments share a slash, so a second pass catches the ones the
	// first skipped.
	for range 2 {
		path = numericSegment.ReplaceAllString(path, "/:id$1")
	}
	return path
}
