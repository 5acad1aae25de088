package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mrkeshav-05/learning-backend/auth"
	"github.com/mrkeshav-05/learning-backend/httpx"
	"github.com/mrkeshav-05/learning-backend/internal/api"
	"github.com/mrkeshav-05/learning-backend/internal/config"
	"github.com/mrkeshav-05/learning-backend/internal/logging"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("auth server starting",
		slog.String("version", Version),
		slog.String("environment", cfg.Environment),
		slog.String("backend", cfg.DirectoryBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.Error("closing directory", slog.String("error", err.Error()))
		}
	}()

	server, err := newServer(cfg, be.directory, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, httpx.WithShutdownTimeout(cfg.HTTPShutdownTimeout))
	})
	if be.background != nil {
		g.Go(func() error {
			return be.background(gctx)
		})
	}

	return g.Wait()
}

func newServer(cfg *config.Config, directory auth.Directory, logger *slog.Logger) (*httpx.Server, error) {
	verifier, err := auth.NewCredentialVerifier(cfg.PasswordAlgorithm, cfg.BcryptCost, []byte(cfg.PasswordPepper))
	if err != nil {
		return nil, fmt.Errorf("building verifier: %w", err)
	}

	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		AccessTTL:     cfg.AccessTokenExpiry,
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		RefreshTTL:    cfg.RefreshTokenExpiry,
		Issuer:        cfg.TokenIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("building token codec: %w", err)
	}

	policy := auth.DefaultPasswordPolicy()
	if cfg.PasswordPolicy == "strict" {
		policy = auth.StrictPasswordPolicy()
	}

	manager, err := auth.NewManager(auth.ManagerConfig{
		Directory:      directory,
		Verifier:       verifier,
		Codec:          codec,
		PasswordPolicy: policy,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building auth manager: %w", err)
	}

	mw, err := manager.Middleware(auth.WithErrorHandler(httpx.WriteAuthError(logger)))
	if err != nil {
		return nil, fmt.Errorf("building auth middleware: %w", err)
	}

	handler, err := api.NewHandler(manager, api.CookieConfig{
		Secure:     cfg.CookieSecure,
		AccessTTL:  manager.TokenTTL(auth.ClassAccess),
		RefreshTTL: manager.TokenTTL(auth.ClassRefresh),
	}, logger)
	if err != nil {
		return nil, err
	}

	opts := []httpx.ServerOption{
		httpx.WithAddress(cfg.HTTPAddr),
		httpx.WithTimeouts(cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout),
		httpx.WithLogger(logger),
		httpx.WithAllowedOrigins(cfg.CORSAllowedOrigins...),
		httpx.WithQuietPaths(api.HealthPath),
	}

	server := httpx.NewServer(opts...)
	server.RegisterRoutes(api.Routes(handler, mw))
	return server, nil
}
