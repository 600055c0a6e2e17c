package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// ErrNotFound is returned by repositories when a keyed record is absent.
var ErrNotFound = errors.New("record not found")

// SessionRepository is the durable keyed store for in-progress enrollments.
// Callers read-modify-write whole records; partial updates are not exposed.
// The lock methods implement the single-writer-per-key discipline.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*domain.EnrollmentSession, error)
	Put(ctx context.Context, session *domain.EnrollmentSession) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	// AcquireLock takes the per-session writer lock and returns an opaque
	// ownership token, or "" when another writer holds the lock.
	AcquireLock(ctx context.Context, sessionID string) (string, error)
	// ReleaseLock frees the lock only while token still owns it. A release
	// that arrives after the lock expired and was re-acquired is a no-op,
	// so a slow writer can never free its successor's lock.
	ReleaseLock(ctx context.Context, sessionID, token string) error
}

type redisSessionRepository struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisSessionRepository stores sessions as JSON blobs in Redis. ttl of
// zero retains sessions indefinitely.
func NewRedisSessionRepository(client *redis.Client, ttl, lockTTL time.Duration) SessionRepository {
	return &redisSessionRepository{client: client, ttl: ttl, lockTTL: lockTTL}
}

func sessionKey(sessionID string) string {
	return "enrollment:session:" + sessionID
}

func sessionLockKey(sessionID string) string {
	return "enrollment:session:" + sessionID + ":lock"
}

func (r *redisSessionRepository) Get(ctx context.Context, sessionID string) (*domain.EnrollmentSession, error) {
	raw, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session domain.EnrollmentSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (r *redisSessionRepository) Put(ctx context.Context, session *domain.EnrollmentSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.SessionID, err)
	}
	if err := r.client.Set(ctx, sessionKey(session.SessionID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return n > 0, nil
}

// releaseLockScript deletes the lock key only while the caller's token is
// still its value, making release atomic with the ownership check.
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// AcquireLock takes the per-session writer lock. The TTL bounds lock leakage
// when a holder dies mid-turn; the token fences releases from holders whose
// lock already expired.
func (r *redisSessionRepository) AcquireLock(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, sessionLockKey(sessionID), token, r.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (r *redisSessionRepository) ReleaseLock(ctx context.Context, sessionID, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{sessionLockKey(sessionID)}, token).Err(); err != nil {
		return fmt.Errorf("release session lock: %w", err)
	}
	return nil
}
