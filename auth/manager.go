package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Manager bundles registration, login, rotation, logout and request
// authentication behind a single façade.
type Manager struct {
	directory     Directory
	verifier      CredentialVerifier
	codec         *Codec
	issuer        *SessionIssuer
	rotator       *Rotator
	authenticator *Authenticator
	policy        PasswordPolicy
	logger        *slog.Logger
	dummyHash     func() (string, error)
}

// ManagerConfig wires the dependencies required for Manager. A zero
// PasswordPolicy means DefaultPasswordPolicy.
type ManagerConfig struct {
	Directory      Directory
	Verifier       CredentialVerifier
	Codec          *Codec
	PasswordPolicy PasswordPolicy
	Logger         *slog.Logger
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("auth: manager requires a credential verifier")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuer, err := NewSessionIssuer(cfg.Directory, cfg.Codec, logger)
	if err != nil {
		return nil, err
	}
	rotator, err := NewRotator(cfg.Directory, cfg.Codec, logger)
	if err != nil {
		return nil, err
	}
	authenticator, err := NewAuthenticator(cfg.Directory, cfg.Codec, logger)
	if err != nil {
		return nil, err
	}

	policy := cfg.PasswordPolicy
	if policy == (PasswordPolicy{}) {
		policy = DefaultPasswordPolicy()
	}

	verifier := cfg.Verifier
	return &Manager{
		directory:     cfg.Directory,
		verifier:      verifier,
		codec:         cfg.Codec,
		issuer:        issuer,
		rotator:       rotator,
		authenticator: authenticator,
		policy:        policy,
		logger:        logger,
		dummyHash: sync.OnceValues(func() (string, error) {
			return verifier.Hash(context.Background(), []byte("not-a-real-password"))
		}),
	}, nil
}

type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	Identity Identity
	Tokens   TokenPair
}

// Register creates an identity. Uniqueness is decided by the directory in
// the same step that creates the record.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (Identity, error) {
	username := NormalizeHandle(in.Username)
	email := NormalizeHandle(in.Email)
	fullName := strings.TrimSpace(in.FullName)
	if username == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return Identity{}, invalid("", "all fields are required")
	}
	if !ValidateEmail(email) {
		return Identity{}, invalid("email", "invalid email address")
	}
	if err := ValidatePasswordStrength([]byte(in.Password), m.policy); err != nil {
		return Identity{}, invalidFrom("password", err)
	}

	hash, err := m.verifier.Hash(ctx, []byte(in.Password))
	if err != nil {
		return Identity{}, upstream("hash password", err)
	}

	created, err := m.directory.Create(ctx, Identity{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
			return Identity{}, err
		default:
			return Identity{}, upstream("create identity", err)
		}
	}

	m.logger.Info("identity registered", slog.String("identity_id", created.ID))
	return created.Sanitized(), nil
}

// Login checks the password and starts a session. An unknown identity and a
// wrong password produce the same ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if strings.TrimSpace(in.Username) == "" && strings.TrimSpace(in.Email) == "" {
		return LoginResult{}, invalid("", "username or email is required")
	}
	if in.Password == "" {
		return LoginResult{}, invalid("password", "password is required")
	}

	identity, err := m.directory.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return LoginResult{}, upstream("find identity", err)
		}
		// Spend the same hashing work as a real comparison.
		if hash, herr := m.dummyHash(); herr == nil {
			_ = m.verifier.Compare(ctx, []byte(in.Password), hash)
		}
		m.logger.Info("login rejected", slog.String("reason", "unknown identity"))
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := m.verifier.Compare(ctx, []byte(in.Password), identity.PasswordHash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			m.logger.Info("login rejected",
				slog.String("reason", "password mismatch"),
				slog.String("identity_id", identity.ID),
			)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, upstream("compare password", err)
	}

	m.upgradeHash(ctx, identity, in.Password)

	pair, err := m.issuer.IssueSession(ctx, identity.ID)
	if err != nil {
		return LoginResult{}, err
	}

	m.logger.Info("login succeeded", slog.String("identity_id", identity.ID))
	return LoginResult{Identity: identity.Sanitized(), Tokens: pair}, nil
}

// rehasher is implemented by verifiers that can tell a stored hash was made
// with weaker settings than they now use.
type rehasher interface {
	NeedsRehash(hash string) bool
}

// upgradeHash replaces a stale password hash after a successful comparison.
// A failure is logged and does not fail the login.
func (m *Manager) upgradeHash(ctx context.Context, identity Identity, password string) {
	r, ok := m.verifier.(rehasher)
	if !ok || !r.NeedsRehash(identity.PasswordHash) {
		return
	}
	hash, err := m.verifier.Hash(ctx, []byte(password))
	if err == nil {
		err = m.directory.UpdatePasswordHash(ctx, identity.ID, hash)
	}
	if err != nil {
		m.logger.Warn("password rehash failed",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Info("password rehashed", slog.String("identity_id", identity.ID))
}

func (m *Manager) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	return m.rotator.Refresh(ctx, raw)
}

// Logout clears the refresh slot. It is idempotent, including for identities
// that no longer exist. Access tokens already issued stay valid until they
// expire.
func (m *Manager) Logout(ctx context.Context, identityID string) error {
	if err := m.directory.UpdateRefreshToken(ctx, identityID, ""); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return upstream("clear refresh token", err)
	}
	m.logger.Info("logged out", slog.String("identity_id", identityID))
	return nil
}

func (m *Manager) Authenticate(ctx context.Context, raw string) (Identity, error) {
	return m.authenticator.Authenticate(ctx, raw)
}

// CurrentUser returns the identity attached by the middleware.
func (m *Manager) CurrentUser(ctx context.Context) (Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, fmt.Errorf("%w: no identity in context", ErrUnauthenticated)
	}
	return identity, nil
}

// ChangePassword replaces the password hash and clears the refresh slot, so
// every session has to log in again once its access token expires.
func (m *Manager) ChangePassword(ctx context.Context, identityID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return invalid("", "old and new password are required")
	}
	if err := ValidatePasswordStrength([]byte(newPassword), m.policy); err != nil {
		return invalidFrom("newPassword", err)
	}

	identity, err := m.directory.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return upstream("load identity", err)
	}

	if err := m.verifier.Compare(ctx, []byte(oldPassword), identity.PasswordHash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return &ValidationError{Field: "oldPassword", Msg: "invalid old password", Err: err}
		}
		return upstream("compare password", err)
	}

	hash, err := m.verifier.Hash(ctx, []byte(newPassword))
	if err != nil {
		return upstream("hash password", err)
	}
	// Slot before hash: a failure in between leaves the old password valid.
	if err := m.directory.UpdateRefreshToken(ctx, identity.ID, ""); err != nil {
		return upstream("clear refresh token", err)
	}
	if err := m.directory.UpdatePasswordHash(ctx, identity.ID, hash); err != nil {
		return upstream("update password", err)
	}

	m.logger.Info("password changed", slog.String("identity_id", identity.ID))
	return nil
}

// Middleware builds request middleware that authenticates through m.
func (m *Manager) Middleware(opts ...MiddlewareOption) (*Middleware, error) {
	return NewMiddleware(m, append([]MiddlewareOption{WithLogger(m.logger)}, opts...)...)
}

// TokenTTL is the lifetime of tokens of class, zero for an unknown class.
func (m *Manager) TokenTTL(class TokenClass) time.Duration {
	return m.codec.TTL(class)
}
