package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort         = errors.New("auth: password too short")
	ErrPasswordTooLong          = errors.New("auth: password too long")
	ErrPasswordNoUppercase      = errors.New("auth: password must contain uppercase letter")
	ErrPasswordNoLowercase      = errors.New("auth: password must contain lowercase letter")
	ErrPasswordNoDigit          = errors.New("auth: password must contain digit")
	ErrPasswordNoSpecial        = errors.New("auth: password must contain special character")
	ErrPasswordCommon           = errors.New("auth: password is too common")
	ErrPasswordMismatch         = errors.New("auth: password does not match")
	ErrPasswordInvalidAlgorithm = errors.New("auth: unsupported password algorithm")
	ErrPasswordInvalidHash      = errors.New("auth: invalid password hash")
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

const (
	DefaultBcryptCost    = 12
	DefaultArgon2Time    = 3
	DefaultArgon2Memory  = 64 * 1024 // KiB
	DefaultArgon2Threads = 4
	DefaultArgon2KeyLen  = 32
	DefaultSaltLength    = 16
	MinPasswordLength    = 8
	// bcrypt rejects input longer than 72 bytes.
	MaxPasswordLength    = 72
	RecommendedMinLength = 12
)

// PasswordPolicy configures password strength requirements.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	CheckCommon      bool
}

// DefaultPasswordPolicy enforces length and rejects well known passwords.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:   MinPasswordLength,
		MaxLength:   MaxPasswordLength,
		CheckCommon: true,
	}
}

// StrictPasswordPolicy adds character class requirements.
func StrictPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        RecommendedMinLength,
		MaxLength:        MaxPasswordLength,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
		CheckCommon:      true,
	}
}

// ValidatePasswordStrength checks password against the policy. Minimum length
// counts runes; maximum length counts bytes because that is what the hashers
// consume.
func ValidatePasswordStrength(password []byte, policy PasswordPolicy) error {
	if len(password) == 0 {
		return ErrPasswordTooShort
	}

	minLen := policy.MinLength
	if minLen <= 0 {
		minLen = MinPasswordLength
	}
	maxLen := policy.MaxLength
	if maxLen <= 0 {
		maxLen = MaxPasswordLength
	}

	s := string(password)
	if len([]rune(s)) < minLen {
		return ErrPasswordTooShort
	}
	if len(password) > maxLen {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		return ErrPasswordNoUppercase
	}
	if policy.RequireLowercase && !hasLower {
		return ErrPasswordNoLowercase
	}
	if policy.RequireDigit && !hasDigit {
		return ErrPasswordNoDigit
	}
	if policy.RequireSpecial && !hasSpecial {
		return ErrPasswordNoSpecial
	}
	if policy.CheckCommon && isCommonPassword(s) {
		return ErrPasswordCommon
	}
	return nil
}

// BcryptHasher is a CredentialVerifier backed by bcrypt.
type BcryptHasher struct {
	cost   int
	pepper []byte
}

type BcryptHasherOption func(*BcryptHasher)

func WithBcryptCost(cost int) BcryptHasherOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithBcryptPepper sets a server-side secret mixed into every password.
func WithBcryptPepper(pepper []byte) BcryptHasherOption {
	return func(h *BcryptHasher) {
		h.pepper = append([]byte(nil), pepper...)
	}
}

func NewBcryptHasher(opts ...BcryptHasherOption) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultBcryptCost}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *BcryptHasher) Hash(ctx context.Context, plain []byte) (string, error) {
	if err := contextError(ctx); err != nil {
		return "", err
	}
	if len(plain) == 0 {
		return "", ErrPasswordTooShort
	}

	combined := pepperPassword(plain, h.pepper)
	defer clearBytes(combined)

	hashed, err := bcrypt.GenerateFromPassword(combined, h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("auth: bcrypt hash failed: %w", err)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(ctx context.Context, plain []byte, hash string) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	if hash == "" {
		return ErrPasswordInvalidHash
	}
	if !strings.HasPrefix(hash, "$2") {
		return ErrPasswordInvalidAlgorithm
	}

	combined := pepperPassword(plain, h.pepper)
	defer clearBytes(combined)

	if err := bcrypt.CompareHashAndPassword([]byte(hash), combined); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: bcrypt compare failed: %w", err)
	}
	return nil
}

// NeedsRehash reports whether hash was produced with a lower cost than the
// hasher is configured for.
func (h *BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// Argon2idHasher is a CredentialVerifier backed by Argon2id. Hashes are
// encoded as $argon2id$v=19$m=MEMORY,t=TIME,p=THREADS$SALT$HASH.
type Argon2idHasher struct {
	time       uint32
	memory     uint32
	threads    uint8
	keyLen     uint32
	saltLength int
	pepper     []byte
}

type Argon2idHasherOption func(*Argon2idHasher)

func WithArgon2Time(t uint32) Argon2idHasherOption {
	return func(h *Argon2idHasher) {
		if t > 0 {
			h.time = t
		}
	}
}

// WithArgon2Memory sets the memory parameter in KiB.
func WithArgon2Memory(m uint32) Argon2idHasherOption {
	return func(h *Argon2idHasher) {
		if m > 0 {
			h.memory = m
		}
	}
}

func WithArgon2Threads(t uint8) Argon2idHasherOption {
	return func(h *Argon2idHasher) {
		if t > 0 {
			h.threads = t
		}
	}
}

func WithArgon2Pepper(pepper []byte) Argon2idHasherOption {
	return func(h *Argon2idHasher) {
		h.pepper = append([]byte(nil), pepper...)
	}
}

func NewArgon2idHasher(opts ...Argon2idHasherOption) *Argon2idHasher {
	h := &Argon2idHasher{
		time:       DefaultArgon2Time,
		memory:     DefaultArgon2Memory,
		threads:    DefaultArgon2Threads,
		keyLen:     DefaultArgon2KeyLen,
		saltLength: DefaultSaltLength,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *Argon2idHasher) Hash(ctx context.Context, plain []byte) (string, error) {
	if err := contextError(ctx); err != nil {
		return "", err
	}
	if len(plain) == 0 {
		return "", ErrPasswordTooShort
	}

	salt := make([]byte, h.saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("auth: failed to generate salt: %w", err)
	}

	combined := pepperPassword(plain, h.pepper)
	defer clearBytes(combined)

	key := argon2.IDKey(combined, salt, h.time, h.memory, h.threads, h.keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (h *Argon2idHasher) Compare(ctx context.Context, plain []byte, hash string) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	if hash == "" {
		return ErrPasswordInvalidHash
	}

	params, salt, stored, err := decodeArgon2Hash(hash)
	if err != nil {
		return err
	}

	combined := pepperPassword(plain, h.pepper)
	defer clearBytes(combined)

	computed := argon2.IDKey(combined, salt, params.time, params.memory, params.threads, uint32(len(stored)))
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

func (h *Argon2idHasher) NeedsRehash(hash string) bool {
	params, _, _, err := decodeArgon2Hash(hash)
	if err != nil {
		return true
	}
	return params.time < h.time || params.memory < h.memory || params.threads < h.threads
}

const (
	maxArgon2Time   = 16
	maxArgon2Memory = 1024 * 1024 // KiB
)

type argon2Params struct {
	time    uint32
	memory  uint32
	threads uint8
}

func decodeArgon2Hash(encoded string) (argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return argon2Params{}, nil, nil, ErrPasswordInvalidHash
	}
	if parts[1] != AlgorithmArgon2id {
		return argon2Params{}, nil, nil, ErrPasswordInvalidAlgorithm
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon2Params{}, nil, nil, ErrPasswordInvalidHash
	}

	var params argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil {
		return argon2Params{}, nil, nil, ErrPasswordInvalidHash
	}
	if params.time == 0 || params.memory == 0 || params.threads == 0 {
		return argon2Params{}, nil, nil, ErrPasswordInvalidHash
	}
	// Stored hashes are input too; refuse parameters that would exhaust the host.
	if params.time > maxArgon2Time || params.memory > maxArgon2Memory {
		return argon2Params{}, nil, nil, ErrPasswordInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return argon2Params{}, nil, nil, ErrPasswordInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argon2Params{}, nil, nil, ErrPasswordInvalidHash
	}
	return params, salt, key, nil
}

// NewCredentialVerifier picks a hasher by algorithm name.
func NewCredentialVerifier(algorithm string, bcryptCost int, pepper []byte) (CredentialVerifier, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		return NewBcryptHasher(WithBcryptCost(bcryptCost), WithBcryptPepper(pepper)), nil
	case AlgorithmArgon2id:
		return NewArgon2idHasher(WithArgon2Pepper(pepper)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrPasswordInvalidAlgorithm, algorithm)
	}
}

// pepperPassword keys an HMAC-SHA256 with the pepper so the hasher input has
// a fixed size regardless of pepper length.
func pepperPassword(plain, pepper []byte) []byte {
	if len(pepper) == 0 {
		return append([]byte(nil), plain...)
	}
	mac := hmac.New(sha256.New, pepper)
	mac.Write(plain)
	sum := mac.Sum(nil)
	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sum)))
	base64.RawStdEncoding.Encode(out, sum)
	return out
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Top common passwords, matched case-insensitively.
var commonPasswords = map[string]struct{}{
	"123456":      {},
	"password":    {},
	"12345678":    {},
	"qwerty":      {},
	"123456789":   {},
	"12345":       {},
	"1234":        {},
	"111111":      {},
	"1234567":     {},
	"dragon":      {},
	"123123":      {},
	"baseball":    {},
	"abc123":      {},
	"football":    {},
	"monkey":      {},
	"letmein":     {},
	"shadow":      {},
	"master":      {},
	"666666":      {},
	"qwertyuiop":  {},
	"123321":      {},
	"mustang":     {},
	"1234567890":  {},
	"michael":     {},
	"654321":      {},
	"superman":    {},
	"1qaz2wsx":    {},
	"7777777":     {},
	"121212":      {},
	"000000":      {},
	"qazwsx":      {},
	"123qwe":      {},
	"killer":      {},
	"trustno1":    {},
	"jordan":      {},
	"jennifer":    {},
	"zxcvbnm":     {},
	"asdfgh":      {},
	"hunter":      {},
	"buster":      {},
	"soccer":      {},
	"harley":      {},
	"batman":      {},
	"andrew":      {},
	"tigger":      {},
	"sunshine":    {},
	"iloveyou":    {},
	"charlie":     {},
	"robert":      {},
	"thomas":      {},
	"hockey":      {},
	"ranger":      {},
	"daniel":      {},
	"starwars":    {},
	"112233":      {},
	"george":      {},
	"computer":    {},
	"michelle":    {},
	"jessica":     {},
	"pepper":      {},
	"11111111":    {},
	"freedom":     {},
	"princess":    {},
	"password1":   {},
	"password123": {},
	"passw0rd":    {},
	"admin":       {},
	"admin123":    {},
	"changeme":    {},
	"qwerty123":   {},
	"welcome":     {},
	"welcome1":    {},
	"welcome123":  {},
	"p@ssw0rd":    {},
	"p@ssword":    {},
	"password1!":  {},
	"letmein123":  {},
	"abc123456":   {},
	"123456789a":  {},
	"a123456789":  {},
	"1q2w3e4r":    {},
	"1q2w3e4r5t":  {},
	"q1w2e3r4":    {},
	"q1w2e3r4t5":  {},
	"qweasdzxc":   {},
	"asdfghjkl":   {},
	"zxcvbnm123":  {},
	"1234qwer":    {},
	"qwer1234":    {},
	"abcd1234":    {},
	"1234abcd":    {},
	"iloveyou1":   {},
}

func isCommonPassword(password string) bool {
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return true
	}
	return isSequentialPattern(password) || isRepeatingPattern(password)
}

// isSequentialPattern matches runs like "12345678" or "hgfedcba".
func isSequentialPattern(s string) bool {
	runes := []rune(s)
	if len(runes) < 4 {
		return false
	}
	ascending, descending := true, true
	for i := 1; i < len(runes); i++ {
		diff := int(runes[i]) - int(runes[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	return ascending || descending
}

func isRepeatingPattern(s string) bool {
	if len(s) < 4 {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address format.
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
