package middleware

import (
	"mime"
	"net/http"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api"
)

// BodyLimits caps request bodies. Multipart uploads carry document bytes and
// get Upload; every other body gets JSON. A non-positive limit disables the
// cap for that kind.
type BodyLimits struct {
	JSON   int64
	Upload int64
}

func (l BodyLimits) limitFor(r *http.Request) int64 {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		return l.Upload
	}
	return l.JSON
}

// BodyLimit rejects declared oversized bodies up front and truncates the rest
// with http.MaxBytesReader.
func BodyLimit(limits BodyLimits) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := limits.limitFor(r)
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
