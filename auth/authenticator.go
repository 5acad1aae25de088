package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Authenticator resolves an access token to the identity it names. It never
// reads the refresh slot.
type Authenticator struct {
	directory Directory
	codec     *Codec
	logger    *slog.Logger
}

func NewAuthenticator(directory Directory, codec *Codec, logger *slog.Logger) (*Authenticator, error) {
	if directory == nil {
		return nil, errors.New("auth: authenticator requires a directory")
	}
	if codec == nil {
		return nil, errors.New("auth: authenticator requires a codec")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{directory: directory, codec: codec, logger: logger}, nil
}

// Authenticate returns the identity without its secret fields. Every
// credential problem is ErrUnauthenticated; directory failures are
// ErrUpstream.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (Identity, error) {
	if err := contextError(ctx); err != nil {
		return Identity{}, err
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: no credential supplied", ErrUnauthenticated)
	}

	claims, err := a.codec.Verify(raw, ClassAccess)
	if err != nil {
		a.logger.LogAttrs(ctx, slog.LevelInfo, "access token rejected", slog.String("reason", err.Error()))
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	identity, err := a.directory.FindByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.logger.LogAttrs(ctx, slog.LevelInfo, "access token rejected",
				slog.String("reason", "stale credential"),
				slog.String("identity_id", claims.IdentityID),
			)
			return Identity{}, fmt.Errorf("%w: stale credential: %w", ErrUnauthenticated, err)
		}
		return Identity{}, upstream("load identity", err)
	}

	return identity.Sanitized(), nil
}
