package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// RefreshStage is how far a refresh attempt progressed.
type RefreshStage string

const (
	StagePresented RefreshStage = "presented"
	StageVerified  RefreshStage = "verified"
	StageMatched   RefreshStage = "matched"
	StageRotated   RefreshStage = "rotated"
	StageRejected  RefreshStage = "rejected"
)

// Rotator exchanges a refresh token for a new pair. A token is accepted only
// if it verifies and still equals the identity's stored slot; anything else
// that verifies is reported as reuse.
type Rotator struct {
	directory Directory
	codec     *Codec
	logger    *slog.Logger
}

func NewRotator(directory Directory, codec *Codec, logger *slog.Logger) (*Rotator, error) {
	if directory == nil {
		return nil, errors.New("auth: rotator requires a directory")
	}
	if codec == nil {
		return nil, errors.New("auth: rotator requires a codec")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rotator{directory: directory, codec: codec, logger: logger}, nil
}

func (r *Rotator) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	if err := contextError(ctx); err != nil {
		return TokenPair{}, err
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, r.reject(ctx, StagePresented, "", fmt.Errorf("%w: no refresh token supplied", ErrUnauthenticated))
	}

	// Verification failures stop here, before any directory access.
	claims, err := r.codec.Verify(raw, ClassRefresh)
	if err != nil {
		return TokenPair{}, r.reject(ctx, StagePresented, "", fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}

	identity, err := r.directory.FindByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, r.reject(ctx, StageVerified, claims.IdentityID, fmt.Errorf("%w: %w", ErrInvalidToken, err))
		}
		return TokenPair{}, r.reject(ctx, StageVerified, claims.IdentityID, upstream("load identity", err))
	}

	if subtle.ConstantTimeCompare([]byte(identity.CurrentRefreshToken), []byte(raw)) != 1 {
		return TokenPair{}, r.reject(ctx, StageVerified, identity.ID, ErrTokenReused)
	}

	pair, err := r.codec.IssuePair(identity.ID)
	if err != nil {
		return TokenPair{}, r.reject(ctx, StageMatched, identity.ID, upstream("sign tokens", err))
	}

	// The read above is advisory; the swap decides. A concurrent refresh with
	// the same token that swapped first leaves this one with nothing to match.
	swapped, err := r.directory.SwapRefreshToken(ctx, identity.ID, raw, pair.RefreshToken)
	if err != nil {
		return TokenPair{}, r.reject(ctx, StageMatched, identity.ID, upstream("rotate refresh token", err))
	}
	if !swapped {
		return TokenPair{}, r.reject(ctx, StageMatched, identity.ID, ErrTokenReused)
	}

	r.logger.Debug("refresh token rotated",
		slog.String("identity_id", identity.ID),
		slog.String("stage", string(StageRotated)),
	)
	return pair, nil
}

func (r *Rotator) reject(ctx context.Context, reached RefreshStage, identityID string, err error) error {
	level := slog.LevelInfo
	switch {
	case errors.Is(err, ErrTokenReused):
		level = slog.LevelWarn
	case errors.Is(err, ErrUpstream):
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("stage", string(StageRejected)),
		slog.String("reached", string(reached)),
		slog.String("reason", err.Error()),
	}
	if identityID != "" {
		attrs = append(attrs, slog.String("identity_id", identityID))
	}
	r.logger.LogAttrs(ctx, level, "refresh rejected", attrs...)
	return err
}
