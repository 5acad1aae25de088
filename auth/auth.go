package auth

import (
	"context"
	"time"
)

// TokenClass distinguishes short-lived access tokens from refresh tokens.
type TokenClass string

const (
	ClassAccess  TokenClass = "access"
	ClassRefresh TokenClass = "refresh"
)

func (c TokenClass) Valid() bool {
	return c == ClassAccess || c == ClassRefresh
}

func (c TokenClass) String() string { return string(c) }

// Claims is the decoded payload of a verified token.
type Claims struct {
	IdentityID string
	Class      TokenClass
	TokenID    string
	Issuer     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// TokenPair is what a login or a successful rotation hands back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CredentialVerifier hashes secrets and compares them to stored hashes.
// Compare returns ErrPasswordMismatch when the secret does not match.
type CredentialVerifier interface {
	Hash(ctx context.Context, plain []byte) (string, error)
	Compare(ctx context.Context, plain []byte, hash string) error
}

// Directory stores identities. Implementations return ErrNotFound for
// unknown identities and ErrConflict when Create hits a taken username or
// email.
type Directory interface {
	FindByID(ctx context.Context, id string) (Identity, error)
	// FindByUsernameOrEmail matches either field; an empty argument is ignored.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (Identity, error)
	Create(ctx context.Context, identity Identity) (Identity, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// UpdateRefreshToken writes only the refresh slot. An empty token clears it.
	UpdateRefreshToken(ctx context.Context, id, token string) error
	// SwapRefreshToken sets the slot to next only if it currently holds
	// current, as one atomic step. It reports false when the slot held
	// something else.
	SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
