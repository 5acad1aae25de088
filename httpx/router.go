package httpx

import (
	"strings"
)

// Route is one entry of a route table.
type Route struct {
	Method     string
	Path       string
	Handler    HandlerFunc
	Middleware []MiddlewareFunc
}

// RegisterRoutes mounts routes under prefix. Entries without a method, path
// or handler are skipped.
func RegisterRoutes(a *App, prefix string, routes ...Route) {
	if a == nil || a.e == nil {
		return
	}
	prefix = strings.TrimSuffix(prefix, "/")
	for _, r := range routes {
		if r.Handler == nil || r.Path == "" || r.Method == "" {
			continue
		}
		a.e.Add(strings.ToUpper(r.Method), prefix+r.Path, r.Handler, r.Middleware...)
	}
}
