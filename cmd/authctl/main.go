// Command authctl drives the auth server's HTTP API from a terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/mrkeshav-05/learning-backend/auth"
	"github.com/mrkeshav-05/learning-backend/httpx"
)

const usage = `usage: authctl [-server URL] [-tokens FILE] <command> [flags]

commands:
  register -username U -email E -name N -password P
  login    (-username U | -email E) -password P
  refresh
  me
  logout
`

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type app struct {
	client    *httpx.Client
	tokenPath string
	out       io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	server := fs.String("server", envOr("AUTHCTL_SERVER", "http://localhost:8000"), "server base URL")
	tokens := fs.String("tokens", envOr("AUTHCTL_TOKENS", defaultTokenPath()), "token file")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}
	if fs.NArg() == 0 {
		return errors.New(usage)
	}

	a := &app{
		client: httpx.NewClient(
			httpx.WithBaseURL(*server),
			httpx.WithClientTimeout(*timeout),
			httpx.WithUserAgent("authctl"),
		),
		tokenPath: *tokens,
		out:       out,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "refresh":
		return a.refresh(ctx)
	case "me":
		return a.me(ctx)
	case "logout":
		return a.logout(ctx)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	name := fs.String("name", "", "full name")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var resp envelope
	if _, err := a.client.Post(ctx, "/api/v1/users/register", map[string]string{
		"username": *username,
		"email":    *email,
		"fullName": *name,
		"password": *password,
	}, &resp); err != nil {
		return err
	}
	return a.print(resp.Data)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var resp struct {
		Data struct {
			User         json.RawMessage `json:"user"`
			AccessToken  string          `json:"accessToken"`
			RefreshToken string          `json:"refreshToken"`
		} `json:"data"`
	}
	if _, err := a.client.Post(ctx, "/api/v1/users/login", map[string]string{
		"username": *username,
		"email":    *email,
		"password": *password,
	}, &resp); err != nil {
		return err
	}
	if err := saveTokens(a.tokenPath, auth.TokenPair{
		AccessToken:  resp.Data.AccessToken,
		RefreshToken: resp.Data.RefreshToken,
	}); err != nil {
		return err
	}
	return a.print(resp.Data.User)
}

func (a *app) refresh(ctx context.Context) error {
	pair, err := loadTokens(a.tokenPath)
	if err != nil {
		return err
	}
	var resp struct {
		Data auth.TokenPair `json:"data"`
	}
	if _, err := a.client.Post(ctx, "/api/v1/users/refresh-token",
		map[string]string{"refreshToken": pair.RefreshToken}, &resp); err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && se.StatusCode == httpx.StatusUnauthorized {
			_ = clearTokens(a.tokenPath)
		}
		return err
	}
	if err := saveTokens(a.tokenPath, resp.Data); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "tokens refreshed")
	return nil
}

func (a *app) me(ctx context.Context) error {
	pair, err := loadTokens(a.tokenPath)
	if err != nil {
		return err
	}
	var resp struct {
		Data struct {
			User json.RawMessage `json:"user"`
		} `json:"data"`
	}
	if _, err := a.client.Get(ctx, "/api/v1/users/current-user", &resp, httpx.WithBearer(pair.AccessToken)); err != nil {
		return err
	}
	return a.print(resp.Data.User)
}

// logout always forgets the local tokens, even if the server call fails.
func (a *app) logout(ctx context.Context) error {
	pair, err := loadTokens(a.tokenPath)
	if err != nil {
		return err
	}
	_, callErr := a.client.Post(ctx, "/api/v1/users/logout", nil, nil, httpx.WithBearer(pair.AccessToken))
	if err := clearTokens(a.tokenPath); err != nil {
		return err
	}
	if callErr != nil {
		return callErr
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *app) print(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
