package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum secret length for HMAC-SHA256 keys.
const MinSecretLength = 32

var signingMethod = jwt.SigningMethodHS256

type tokenClaims struct {
	Class TokenClass `json:"cls"`
	jwt.RegisteredClaims
}

// IssueToken signs a token of the given class for identityID. Times are
// truncated to whole seconds, matching the precision of the encoded claims.
func IssueToken(identityID string, class TokenClass, key []byte, ttl time.Duration, now time.Time) (string, Claims, error) {
	return issueToken(identityID, class, key, ttl, now, "")
}

// VerifyToken checks signature, structure and expiry of raw. The signature is
// checked first, so a token signed with another key always fails with
// ErrTokenSignatureInvalid whatever its payload says.
func VerifyToken(raw string, key []byte, now time.Time) (Claims, error) {
	return verifyToken(raw, key, now, "")
}

func issueToken(identityID string, class TokenClass, key []byte, ttl time.Duration, now time.Time, issuer string) (string, Claims, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return "", Claims{}, ErrTokenSubjectMissing
	}
	if !class.Valid() {
		return "", Claims{}, fmt.Errorf("%w: unknown class %q", ErrTokenClassMismatch, class)
	}
	if len(key) == 0 {
		return "", Claims{}, ErrSigningKeyMissing
	}
	if ttl < time.Second {
		return "", Claims{}, ErrTokenTTLInvalid
	}

	issuedAt := now.UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl).Truncate(time.Second)
	claims := tokenClaims{
		Class: class,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identityID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	raw, err := jwt.NewWithClaims(signingMethod, claims).SignedString(key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("auth: sign token: %w", err)
	}

	return raw, Claims{
		IdentityID: identityID,
		Class:      class,
		TokenID:    claims.ID,
		Issuer:     issuer,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
	}, nil
}

func verifyToken(raw string, key []byte, now time.Time, issuer string) (Claims, error) {
	if len(key) == 0 {
		return Claims{}, ErrSigningKeyMissing
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrTokenMalformed
	}

	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	}
	methods := jwt.WithValidMethods([]string{signingMethod.Alg()})

	// The typed decode runs before the signature check, so check the
	// signature against MapClaims first; any JSON object decodes into it.
	if _, err := jwt.NewParser(methods, jwt.WithoutClaimsValidation()).Parse(raw, keyFunc); err != nil {
		return Claims{}, classifyParseError(err)
	}

	opts := []jwt.ParserOption{
		methods,
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	var claims tokenClaims
	if _, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, keyFunc); err != nil {
		return Claims{}, classifyParseError(err)
	}

	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil || !claims.Class.Valid() {
		return Claims{}, fmt.Errorf("%w: required claims missing", ErrTokenMalformed)
	}

	return Claims{
		IdentityID: claims.Subject,
		Class:      claims.Class,
		TokenID:    claims.ID,
		Issuer:     claims.Issuer,
		IssuedAt:   claims.IssuedAt.Time.UTC(),
		ExpiresAt:  claims.ExpiresAt.Time.UTC(),
	}, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

// CodecConfig holds the per-class keys and lifetimes.
type CodecConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
	Issuer        string
	Now           func() time.Time
}

type classKey struct {
	secret []byte
	ttl    time.Duration
}

// Codec issues and verifies tokens with the key and TTL of each class.
type Codec struct {
	access  classKey
	refresh classKey
	issuer  string
	now     func() time.Time
}

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, ErrSigningKeyMissing
	}
	if len(cfg.AccessSecret) < MinSecretLength || len(cfg.RefreshSecret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSigningKeyWeak, MinSecretLength)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, ErrSigningKeyShared
	}
	if cfg.AccessTTL < time.Second || cfg.RefreshTTL < time.Second {
		return nil, ErrTokenTTLInvalid
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, fmt.Errorf("%w: access ttl must be shorter than refresh ttl", ErrTokenTTLInvalid)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		access:  classKey{secret: append([]byte(nil), cfg.AccessSecret...), ttl: cfg.AccessTTL},
		refresh: classKey{secret: append([]byte(nil), cfg.RefreshSecret...), ttl: cfg.RefreshTTL},
		issuer:  cfg.Issuer,
		now:     now,
	}, nil
}

func (c *Codec) key(class TokenClass) (classKey, error) {
	switch class {
	case ClassAccess:
		return c.access, nil
	case ClassRefresh:
		return c.refresh, nil
	default:
		return classKey{}, fmt.Errorf("%w: unknown class %q", ErrTokenClassMismatch, class)
	}
}

func (c *Codec) Issue(identityID string, class TokenClass) (string, Claims, error) {
	k, err := c.key(class)
	if err != nil {
		return "", Claims{}, err
	}
	return issueToken(identityID, class, k.secret, k.ttl, c.now(), c.issuer)
}

// Verify checks raw against the key of class and rejects tokens of the other
// class with ErrTokenClassMismatch.
func (c *Codec) Verify(raw string, class TokenClass) (Claims, error) {
	k, err := c.key(class)
	if err != nil {
		return Claims{}, err
	}
	claims, err := verifyToken(raw, k.secret, c.now(), c.issuer)
	if err != nil {
		return Claims{}, err
	}
	if claims.Class != class {
		return Claims{}, fmt.Errorf("%w: got %s, want %s", ErrTokenClassMismatch, claims.Class, class)
	}
	return claims, nil
}

// IssuePair mints a fresh access and refresh token for identityID.
func (c *Codec) IssuePair(identityID string) (TokenPair, error) {
	access, _, err := c.Issue(identityID, ClassAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := c.Issue(identityID, ClassRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (c *Codec) TTL(class TokenClass) time.Duration {
	k, err := c.key(class)
	if err != nil {
		return 0
	}
	return k.ttl
}
