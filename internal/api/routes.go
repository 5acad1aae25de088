package api

import (
	"net/http"

	"github.com/mrkeshav-05/learning-backend/auth"
	"github.com/mrkeshav-05/learning-backend/httpx"
)

// HealthPath answers liveness probes.
const HealthPath = "/healthz"

// UsersPrefix is where the user API is mounted.
const UsersPrefix = "/api/v1/users"

// Routes mounts the user API and the health probe. mw guards every route
// that needs an access token.
func Routes(h *Handler, mw *auth.Middleware) httpx.RouteRegistrar {
	return func(a *httpx.App) {
		a.GET(HealthPath, h.Health)

		protected := []httpx.MiddlewareFunc{httpx.AuthMiddleware(mw)}
		httpx.RegisterRoutes(a, UsersPrefix,
			httpx.Route{Method: http.MethodPost, Path: "/register", Handler: h.Register},
			httpx.Route{Method: http.MethodPost, Path: "/login", Handler: h.Login},
			httpx.Route{Method: http.MethodPost, Path: "/refresh-token", Handler: h.RefreshToken},
			httpx.Route{Method: http.MethodPost, Path: "/logout", Handler: h.Logout, Middleware: protected},
			httpx.Route{Method: http.MethodGet, Path: "/current-user", Handler: h.CurrentUser, Middleware: protected},
			httpx.Route{Method: http.MethodPost, Path: "/change-password", Handler: h.ChangePassword, Middleware: protected},
		)
	}
}
