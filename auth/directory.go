package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrkeshav-05/learning-backend/cache"
	"github.com/mrkeshav-05/learning-backend/cache/redis"
)

type StoreDirectoryOptions struct {
	Prefix string
	// RefreshTTL bounds how long a refresh slot survives without rotation.
	// It should match the refresh token lifetime.
	RefreshTTL time.Duration
	Now        func() time.Time
}

// StoreDirectory is a Directory over any cache.Store. It uses the layout
//
//	<prefix>:identity:<id>   identity record (JSON)
//	<prefix>:username:<u>    id, claimed with SetNX
//	<prefix>:email:<e>       id, claimed with SetNX
//	<prefix>:refresh:<id>    current refresh token
//
// Keeping the refresh slot in its own key means slot writes never touch the
// identity record.
type StoreDirectory struct {
	store      cache.Store
	prefix     string
	refreshTTL time.Duration
	now        func() time.Time
}

func NewStoreDirectory(store cache.Store, opts StoreDirectoryOptions) *StoreDirectory {
	prefix := strings.TrimSuffix(opts.Prefix, ":")
	if prefix == "" {
		prefix = "auth"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &StoreDirectory{
		store:      store,
		prefix:     prefix,
		refreshTTL: opts.RefreshTTL,
		now:        now,
	}
}

type RedisDirectoryOptions struct {
	StoreDirectoryOptions
	Redis redis.Options
}

// NewRedisDirectory builds a StoreDirectory backed by a new Redis store. The
// store is returned so the caller can Ping and Close it.
func NewRedisDirectory(opts RedisDirectoryOptions) (*StoreDirectory, *redis.Store) {
	store := redis.NewStore(opts.Redis)
	return NewStoreDirectory(store, opts.StoreDirectoryOptions), store
}

type identityRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (r identityRecord) identity() Identity {
	return Identity{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		FullName:     r.FullName,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (d *StoreDirectory) identityKey(id string) string {
	return fmt.Sprintf("%s:identity:%s", d.prefix, id)
}

func (d *StoreDirectory) usernameKey(username string) string {
	return fmt.Sprintf("%s:username:%s", d.prefix, username)
}

func (d *StoreDirectory) emailKey(email string) string {
	return fmt.Sprintf("%s:email:%s", d.prefix, email)
}

func (d *StoreDirectory) refreshKey(id string) string {
	return fmt.Sprintf("%s:refresh:%s", d.prefix, id)
}

func (d *StoreDirectory) FindByID(ctx context.Context, id string) (Identity, error) {
	if err := contextError(ctx); err != nil {
		return Identity{}, err
	}
	record, err := d.loadRecord(ctx, id)
	if err != nil {
		return Identity{}, err
	}

	identity := record.identity()
	token, err := d.store.Get(ctx, d.refreshKey(id))
	switch {
	case err == nil:
		identity.CurrentRefreshToken = string(token)
	case errors.Is(err, cache.ErrNotFound):
	default:
		return Identity{}, err
	}
	return identity, nil
}

func (d *StoreDirectory) FindByUsernameOrEmail(ctx context.Context, username, email string) (Identity, error) {
	if err := contextError(ctx); err != nil {
		return Identity{}, err
	}

	var keys []string
	if u := NormalizeHandle(username); u != "" {
		keys = append(keys, d.usernameKey(u))
	}
	if e := NormalizeHandle(email); e != "" {
		keys = append(keys, d.emailKey(e))
	}

	for _, key := range keys {
		id, err := d.store.Get(ctx, key)
		if errors.Is(err, cache.ErrNotFound) {
			continue
		}
		if err != nil {
			return Identity{}, err
		}
		identity, err := d.FindByID(ctx, string(id))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return identity, err
	}
	return Identity{}, ErrNotFound
}

// Create claims the username and email indexes before writing the record
// and releases them again if a later step fails.
func (d *StoreDirectory) Create(ctx context.Context, identity Identity) (Identity, error) {
	if err := contextError(ctx); err != nil {
		return Identity{}, err
	}

	identity.Username = NormalizeHandle(identity.Username)
	identity.Email = NormalizeHandle(identity.Email)
	if identity.Username == "" || identity.Email == "" {
		return Identity{}, invalid("", "username and email are required")
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := d.now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	identity.CurrentRefreshToken = ""

	var claimed []string
	release := func() {
		for _, key := range claimed {
			_ = d.store.Delete(context.WithoutCancel(ctx), key)
		}
	}

	for _, key := range []string{d.usernameKey(identity.Username), d.emailKey(identity.Email)} {
		ok, err := d.store.SetNX(ctx, key, []byte(identity.ID), 0)
		if err != nil {
			release()
			return Identity{}, err
		}
		if !ok {
			release()
			return Identity{}, ErrConflict
		}
		claimed = append(claimed, key)
	}

	if err := d.saveRecord(ctx, identity); err != nil {
		release()
		return Identity{}, err
	}
	return identity, nil
}

func (d *StoreDirectory) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	record, err := d.loadRecord(ctx, id)
	if err != nil {
		return err
	}
	identity := record.identity()
	identity.PasswordHash = hash
	identity.UpdatedAt = d.now().UTC()
	return d.saveRecord(ctx, identity)
}

func (d *StoreDirectory) UpdateRefreshToken(ctx context.Context, id, token string) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	if _, err := d.loadRecord(ctx, id); err != nil {
		return err
	}
	if token == "" {
		if err := d.store.Delete(ctx, d.refreshKey(id)); err != nil && !errors.Is(err, cache.ErrNotFound) {
			return err
		}
		return nil
	}
	return d.store.Set(ctx, d.refreshKey(id), []byte(token), d.refreshTTL)
}

func (d *StoreDirectory) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	if err := contextError(ctx); err != nil {
		return false, err
	}
	if id == "" || current == "" || next == "" {
		return false, nil
	}
	return d.store.CompareAndSwap(ctx, d.refreshKey(id), []byte(current), []byte(next), d.refreshTTL)
}

func (d *StoreDirectory) loadRecord(ctx context.Context, id string) (identityRecord, error) {
	if id == "" {
		return identityRecord{}, ErrNotFound
	}
	payload, err := d.store.Get(ctx, d.identityKey(id))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return identityRecord{}, ErrNotFound
		}
		return identityRecord{}, err
	}
	var record identityRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return identityRecord{}, fmt.Errorf("auth: decode identity %s: %w", id, err)
	}
	return record, nil
}

func (d *StoreDirectory) saveRecord(ctx context.Context, identity Identity) error {
	payload, err := json.Marshal(identityRecord{
		ID:           identity.ID,
		Username:     identity.Username,
		Email:        identity.Email,
		FullName:     identity.FullName,
		PasswordHash: identity.PasswordHash,
		CreatedAt:    identity.CreatedAt,
		UpdatedAt:    identity.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return d.store.Set(ctx, d.identityKey(identity.ID), payload, 0)
}
