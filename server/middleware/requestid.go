package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/analyticore/gatekit/observability"
)

// HeaderRequestID is the header carrying the request id.
const HeaderRequestID = "X-Request-Id"

// RequestID returns middleware that propagates the X-Request-Id header,
// generating one when missing, and attaches it to the request context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(HeaderRequestID, id)
			}
			w.Header().Set(HeaderRequestID, id)
			r = r.WithContext(observability.WithRequestID(r.Context(), id))
			next.ServeHTTP(w, r)
		})
	}
}
