package middleware

import "net/http"

// DefaultMaxBodySize bounds API request bodies. Calls carry a handful of
// string arguments, so this is generous.
const DefaultMaxBodySize = 1 << 20

// MaxBodySize limits request bodies to maxBytes. Reading past the limit
// fails, and the handler answers with 413.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
