package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mrkeshav-05/learning-backend/auth"
)

func TestServerAndClientRoundTrip(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		a.GET("/ping", func(c Context) error {
			return c.JSON(StatusOK, map[string]string{"message": "pong"})
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	var body struct {
		Message string `json:"message"`
	}
	resp, err := client.Get(context.Background(), "/ping", &body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if body.Message != "pong" {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestErrorHandlerWrapsEchoHTTPError(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		a.GET("/fail", func(c Context) error {
			return HTTPError(StatusBadRequest, "bad request")
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	resp, err := client.Get(context.Background(), "/fail", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if resp == nil {
		t.Fatalf("expected response for error path")
	}
	if resp.StatusCode() != StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
}

func TestAuthMiddlewareBridge(t *testing.T) {
	resolver := stubResolver{tokens: map[string]auth.Identity{
		"signed": {ID: "u-1", Username: "alice", PasswordHash: "secret-hash"},
	}}
	mw, err := auth.NewMiddleware(resolver, auth.WithErrorHandler(WriteAuthError(nil)))
	if err != nil {
		t.Fatalf("unexpected err creating middleware: %v", err)
	}

	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		a.GET("/secure", func(c Context) error {
			identity, ok := auth.IdentityFromContext(c.Request().Context())
			if !ok || identity.ID != "u-1" {
				return HTTPError(StatusUnauthorized, "missing identity")
			}
			if identity.PasswordHash != "" {
				return HTTPError(StatusInternalError, "secret leaked into context")
			}
			return c.JSON(StatusOK, map[string]string{"username": identity.Username})
		}, AuthMiddleware(mw))
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))
	var out map[string]string
	resp, err := client.Get(context.Background(), "/secure", &out, WithBearer("signed"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK || out["username"] != "alice" {
		t.Fatalf("unexpected response: status=%d body=%v", resp.StatusCode(), out)
	}

	resp, err = client.Get(context.Background(), "/secure", nil, WithCookie(auth.AccessTokenCookie, "signed"))
	if err != nil {
		t.Fatalf("cookie credential rejected: %v", err)
	}

	_, err = client.Get(context.Background(), "/secure", nil, WithBearer("forged"))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != StatusUnauthorized || se.Message != MsgUnauthorized {
		t.Fatalf("unexpected rejection: %+v", se)
	}

	if _, err := client.Get(context.Background(), "/secure", nil); !errors.As(err, &se) || se.StatusCode != StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %v", err)
	}
}

func TestAuthMiddlewarePropagatesHandlerError(t *testing.T) {
	resolver := stubResolver{tokens: map[string]auth.Identity{"signed": {ID: "u-1"}}}
	mw, err := auth.NewMiddleware(resolver)
	if err != nil {
		t.Fatalf("unexpected err creating middleware: %v", err)
	}

	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		a.POST("/conflict", func(c Context) error {
			return fmt.Errorf("create: %w", auth.ErrConflict)
		}, AuthMiddleware(mw))
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))
	_, err = client.Post(context.Background(), "/conflict", map[string]string{}, nil, WithBearer("signed"))
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != StatusConflict || se.Message != MsgConflict {
		t.Fatalf("expected mapped conflict, got %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation field", &auth.ValidationError{Field: "email", Msg: "invalid email address"}, StatusBadRequest, "Invalid email address"},
		{"bare validation", auth.ErrValidation, StatusBadRequest, MsgInvalidRequest},
		{"conflict", fmt.Errorf("insert: %w", auth.ErrConflict), StatusConflict, MsgConflict},
		{"credentials", auth.ErrInvalidCredentials, StatusUnauthorized, MsgInvalidCredentials},
		{"reuse", auth.ErrTokenReused, StatusUnauthorized, MsgRefreshRejected},
		{"expired refresh", fmt.Errorf("%w: %w", auth.ErrInvalidToken, auth.ErrTokenExpired), StatusUnauthorized, MsgRefreshRejected},
		{"unauthenticated", auth.ErrUnauthenticated, StatusUnauthorized, MsgUnauthorized},
		{"not found", auth.ErrNotFound, StatusUnauthorized, MsgUnauthorized},
		{"echo", HTTPError(StatusNotFound, "gone"), StatusNotFound, "gone"},
		{"upstream", fmt.Errorf("%w: load: %w", auth.ErrUpstream, errors.New("dial tcp")), StatusInternalError, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := StatusFor(tc.err)
			if status != tc.status || msg != tc.msg {
				t.Fatalf("StatusFor(%v) = %d %q, want %d %q", tc.err, status, msg, tc.status, tc.msg)
			}
		})
	}
}

func TestErrorHandlerHidesInternalDetail(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		a.GET("/boom", func(c Context) error {
			return fmt.Errorf("%w: load identity: %w", auth.ErrUpstream, errors.New("password=hunter2"))
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))
	resp, err := client.Get(context.Background(), "/boom", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != StatusInternalError {
		t.Fatalf("expected 500, got %v", err)
	}
	if strings.Contains(resp.String(), "hunter2") {
		t.Fatalf("response leaked error detail: %s", resp.String())
	}
	var body ErrorBody
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.StatusCode != StatusInternalError {
		t.Fatalf("unexpected envelope: %+v", body)
	}
}

func TestValidatorMiddleware(t *testing.T) {
	validator := func(c Context) error {
		if c.Request().Header.Get("X-Allow") != "yes" {
			return HTTPError(StatusBadRequest, "blocked")
		}
		return nil
	}
	server := NewServer(WithValidators(validator))
	server.RegisterRoutes(func(a *App) {
		a.GET("/secure", func(c Context) error { return c.NoContent(StatusOK) })
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	// blocked
	if _, err := client.Get(context.Background(), "/secure", nil); err == nil {
		t.Fatalf("expected validation error")
	}

	// allowed
	resp, err := client.Get(context.Background(), "/secure", nil, WithRequestHeaders(map[string]string{"X-Allow": "yes"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
}

func TestAllowedOriginsCORS(t *testing.T) {
	server := NewServer(WithAllowedOrigins("*", "http://example.com"))
	server.RegisterRoutes(func(a *App) {
		a.GET("/ping", func(c Context) error { return c.NoContent(StatusOK) })
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))
	resp, err := client.Get(context.Background(), "/ping", nil, WithRequestHeaders(map[string]string{
		"Origin":                        "http://example.com",
		"Access-Control-Request-Method": "GET",
	}))
	if err != nil {
		t.Fatalf("options request failed: %v", err)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "http://example.com" {
		t.Fatalf("expected CORS allow origin header, got %q", resp.Header().Get("Access-Control-Allow-Origin"))
	}
	if resp.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentialed CORS, got %q", resp.Header().Get("Access-Control-Allow-Credentials"))
	}

	resp, err = client.Get(context.Background(), "/ping", nil, WithRequestHeaders(map[string]string{
		"Origin": "http://evil.test",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin allowed: %q", got)
	}
}

func TestQuietPathsSkipRequestLog(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	server := NewServer(WithLogger(logger), WithQuietPaths("/healthz"))
	server.RegisterRoutes(func(a *App) {
		a.GET("/healthz", func(c Context) error { return c.NoContent(StatusOK) })
		a.GET("/ping", func(c Context) error { return c.NoContent(StatusOK) })
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()), WithUserAgent("httpx-test/1"))
	if _, err := client.Get(context.Background(), "/healthz", nil); err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("ping: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "/healthz") {
		t.Fatalf("quiet path logged: %s", out)
	}
	if !strings.Contains(out, "uri=/ping") {
		t.Fatalf("request log missing: %s", out)
	}
}

func TestRegisterRoutesSkipsIncompleteEntries(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		RegisterRoutes(a, "/api/",
			Route{Method: "get", Path: "/ping", Handler: func(c Context) error {
				return c.JSON(StatusOK, map[string]string{"message": "pong"})
			}},
			Route{Method: "GET", Path: "/nil-handler"},
			Route{Path: "/no-method", Handler: func(c Context) error { return nil }},
		)
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))
	var body map[string]string
	if _, err := client.Get(context.Background(), "/api/ping", &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["message"] != "pong" {
		t.Fatalf("unexpected body: %#v", body)
	}

	_, err := client.Get(context.Background(), "/api/nil-handler", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != StatusNotFound {
		t.Fatalf("incomplete route was mounted: %v", err)
	}
}

func TestRegisterRoutesBulkAndPostBody(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		RegisterRoutes(a, "",
			Route{Method: "GET", Path: "/r1", Handler: func(c Context) error {
				return c.JSON(StatusOK, map[string]string{"route": "r1"})
			}},
			Route{Method: "POST", Path: "/echo", Handler: func(c Context) error {
				var payload map[string]any
				if err := c.Bind(&payload); err != nil {
					return HTTPError(StatusBadRequest, "invalid body")
				}
				return c.JSON(StatusCreated, payload)
			}},
		)
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	// GET route
	var r1 map[string]string
	resp, err := client.Get(context.Background(), "/r1", &r1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK || r1["route"] != "r1" {
		t.Fatalf("unexpected response: status=%d body=%v", resp.StatusCode(), r1)
	}

	// POST with JSON body
	payload := map[string]string{"hello": "world"}
	var echoed map[string]string
	resp, err = client.Post(context.Background(), "/echo", payload, &echoed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusCreated || echoed["hello"] != "world" {
		t.Fatalf("unexpected POST response: status=%d body=%v", resp.StatusCode(), echoed)
	}
}

func TestClientRequestOptions(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		a.GET("/opts", func(c Context) error {
			authz := c.Request().Header.Get("Authorization")
			custom := c.Request().Header.Get("X-Custom")
			qp := c.QueryParam("q")
			return c.JSON(StatusOK, map[string]string{"auth": authz, "custom": custom, "q": qp})
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	var out map[string]string
	resp, err := client.Get(context.Background(), "/opts", &out,
		WithBearer("token123"),
		WithRequestHeaders(map[string]string{"X-Custom": "yes"}),
		WithQuery(map[string]string{"q": "search"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if out["auth"] != "Bearer token123" || out["custom"] != "yes" || out["q"] != "search" {
		t.Fatalf("unexpected headers/query: %v", out)
	}
}

func TestClientRestyConfigHook(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(a *App) {
		a.GET("/config", func(c Context) error {
			return c.JSON(StatusOK, map[string]string{"cfg": c.Request().Header.Get("X-Config")})
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(
		WithBaseURL(ts.BaseURL()),
		WithRestyConfig(func(rc RestClient) {
			rc.SetHeader("X-Config", "hooked")
		}),
	)

	var out map[string]string
	resp, err := client.Get(context.Background(), "/config", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK || out["cfg"] != "hooked" {
		t.Fatalf("unexpected resty config result: status=%d body=%v", resp.StatusCode(), out)
	}
}

type stubResolver struct {
	tokens map[string]auth.Identity
}

func (s stubResolver) Authenticate(_ context.Context, raw string) (auth.Identity, error) {
	identity, ok := s.tokens[raw]
	if !ok {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return identity, nil
}
