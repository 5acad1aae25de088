package httpx

import (
	"net/http"

	"github.com/mrkeshav-05/learning-backend/auth"
)

// AuthMiddleware runs the auth middleware in front of an echo handler. The
// authenticated request, with the identity in its context, replaces the
// original one, and the handler's error is returned to echo unchanged.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusUnauthorized, "auth middleware missing")
			}
		}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			var downstreamErr error
			downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				downstreamErr = next(c)
			})
			mw.Handler(downstream).ServeHTTP(c.Response(), c.Request())
			return downstreamErr
		}
	}
}
