package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mrkeshav-05/learning-backend/cache/redis"
)

func TestRedisDirectorySessionLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	dir, store := NewRedisDirectory(RedisDirectoryOptions{
		StoreDirectoryOptions: StoreDirectoryOptions{Prefix: "auth:", RefreshTTL: time.Hour},
		Redis:                 redis.Options{Addr: mr.Addr()},
	})
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	alice := seedIdentity(t, dir, "alice")
	if !mr.Exists("auth:identity:" + alice.ID) {
		t.Fatalf("identity record missing, keys = %v", mr.Keys())
	}
	if _, err := dir.Create(ctx, Identity{Username: "alice", Email: "x@example.com"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate Create() error = %v", err)
	}

	codec := newTestCodec(t, nil)
	issuer, _ := NewSessionIssuer(dir, codec, discardLogger())
	rotator, _ := NewRotator(dir, codec, discardLogger())

	first, err := issuer.IssueSession(ctx, alice.ID)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}
	if ttl := mr.TTL("auth:refresh:" + alice.ID); ttl != time.Hour {
		t.Fatalf("refresh slot ttl = %v, want 1h", ttl)
	}

	second, err := rotator.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if _, err := rotator.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("replay error = %v", err)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := rotator.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("Refresh() after slot expiry error = %v", err)
	}
}

func TestRedisDirectoryUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	dir, store := NewRedisDirectory(RedisDirectoryOptions{
		Redis: redis.Options{Addr: mr.Addr(), DialTimeout: 100 * time.Millisecond},
	})
	t.Cleanup(func() { _ = store.Close() })
	mr.Close()

	authenticator, _ := NewAuthenticator(dir, newTestCodec(t, nil), discardLogger())
	raw, _, _ := newTestCodec(t, nil).Issue("u1", ClassAccess)
	if _, err := authenticator.Authenticate(context.Background(), raw); !errors.Is(err, ErrUpstream) {
		t.Fatalf("Authenticate() error = %v, want ErrUpstream", err)
	}
}
