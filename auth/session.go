package auth

import (
	"context"
	"errors"
	"log/slog"
)

// SessionIssuer mints a token pair for an identity and stores the refresh
// half in the identity's single refresh slot.
type SessionIssuer struct {
	directory Directory
	codec     *Codec
	logger    *slog.Logger
}

func NewSessionIssuer(directory Directory, codec *Codec, logger *slog.Logger) (*SessionIssuer, error) {
	if directory == nil {
		return nil, errors.New("auth: session issuer requires a directory")
	}
	if codec == nil {
		return nil, errors.New("auth: session issuer requires a codec")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionIssuer{directory: directory, codec: codec, logger: logger}, nil
}

// IssueSession overwrites any refresh token the identity held before, so a
// new login ends the refresh capability of the previous one. No pair is
// returned unless the refresh token was persisted.
func (s *SessionIssuer) IssueSession(ctx context.Context, identityID string) (TokenPair, error) {
	if err := contextError(ctx); err != nil {
		return TokenPair{}, err
	}

	identity, err := s.directory.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrNotFound
		}
		return TokenPair{}, upstream("load identity", err)
	}

	pair, err := s.codec.IssuePair(identity.ID)
	if err != nil {
		return TokenPair{}, upstream("sign tokens", err)
	}

	if err := s.directory.UpdateRefreshToken(ctx, identity.ID, pair.RefreshToken); err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrNotFound
		}
		return TokenPair{}, upstream("persist refresh token", err)
	}

	s.logger.Debug("session issued", slog.String("identity_id", identity.ID))
	return pair, nil
}
