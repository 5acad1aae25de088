package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Middleware authenticates requests before they reach the wrapped handler.
type Middleware struct {
	resolver     IdentityResolver
	extractor    TokenExtractor
	skipper      MiddlewareSkipper
	errorHandler MiddlewareErrorHandler
	logger       *slog.Logger
}

type identityContextKey struct{}

func NewMiddleware(resolver IdentityResolver, opts ...MiddlewareOption) (*Middleware, error) {
	cfg, err := newMiddlewareConfig(resolver, opts...)
	if err != nil {
		return nil, err
	}
	return &Middleware{
		resolver:     cfg.resolver,
		extractor:    cfg.extractor,
		skipper:      cfg.skipper,
		errorHandler: cfg.errorHandler,
		logger:       cfg.logger,
	}, nil
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil {
		panic("auth: middleware is nil")
	}
	if next == nil {
		next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := m.extractor(r)
		if err != nil {
			m.logger.LogAttrs(r.Context(), slog.LevelDebug, "no access credential",
				slog.String("path", r.URL.Path),
				slog.String("reason", err.Error()),
			)
			m.errorHandler(w, r, fmt.Errorf("%w: %w", ErrUnauthenticated, err))
			return
		}

		identity, err := m.resolver.Authenticate(r.Context(), raw)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// WithIdentity stores identity in ctx with its secret fields removed.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity.Sanitized())
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
