package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/genomechain/genome-ledger/internal/logging"
)

// HTTPLogging logs every request and response at debug level, with
// credentials masked. Below debug it adds no overhead.
func HTTPLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.Enabled(r.Context(), slog.LevelDebug) {
				next.ServeHTTP(w, r)
				return
			}

			reqBody, err := readBody(r)
			if err != nil {
				logger.Error("failed to read request body", "error", err)
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			requestID := GetRequestID(r.Context())
			logger.Debug("HTTP request",
				"request_id", requestID,
				"method", r.Method,
				"url", r.URL.Path,
				"query", r.URL.RawQuery,
				"headers", maskHeaders(r.Header),
				"body", maskBody(reqBody),
			)

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			logger.Debug("HTTP response",
				"request_id", requestID,
				"method", r.Method,
				"url", r.URL.Path,
				"status", rec.statusCode,
				"headers", maskHeaders(rec.Header()),
				"body", maskBody(rec.body.Bytes()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// readBody drains the request body and puts a replayable copy back.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func maskHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 {
			out[k] = logging.MaskHeader(k, v[0])
		}
	}
	return out
}

func maskBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !utf8.Valid(body) {
		return logging.FormatBinaryData(body)
	}
	return string(logging.MaskJSONBody(body, logging.SensitiveFields))
}

// responseRecorder tees the response body so it can be logged.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
