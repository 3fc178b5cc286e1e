// Package sessionlog mirrors session activity into Redis so operators and
// sibling processes can see which sessions are live. The in-memory store
// stays authoritative; the mirror is best-effort.
package sessionlog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// KeyPrefix prefixes every mirrored session hash.
const KeyPrefix = "docqa:session:"

// Conn opens a client and pings it.
func Conn(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Key returns the hash key for a session.
func Key(sessionID string) string {
	return KeyPrefix + sessionID
}

// Mirror implements ports.SessionObserver over a Redis client.
type Mirror struct {
	client  redis.Cmdable
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewMirror creates a mirror whose keys expire after ttl of inactivity.
// ttl <= 0 leaves keys without expiry.
func NewMirror(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{client: client, ttl: ttl, timeout: 2 * time.Second, logger: logger}
}

// OnSessionEvent writes or deletes the session hash. Every access refreshes
// the key's expiry, so it lives as long as the in-memory session.
func (m *Mirror) OnSessionEvent(ctx context.Context, event entities.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	var err error
	switch event.Kind {
	case entities.SessionCreated, entities.SessionDocument, entities.SessionTouched:
		err = m.upsert(ctx, event)
	case entities.SessionReset, entities.SessionExpired:
		err = m.client.Del(ctx, Key(event.SessionID)).Err()
	}
	if err != nil {
		m.logger.Warn("session mirror write failed",
			zap.String("session_id", event.SessionID),
			zap.String("event", string(event.Kind)),
			zap.Error(err))
	}
}

func (m *Mirror) upsert(ctx context.Context, event entities.SessionEvent) error {
	key := Key(event.SessionID)
	last := event.LastAccessed
	if last.IsZero() {
		last = time.Now()
	}
	fields := map[string]interface{}{
		"session_id":     event.SessionID,
		"last_accessed":  last.UTC().Format(time.RFC3339Nano),
		"document_count": strconv.Itoa(event.DocumentCount),
	}
	if event.Kind == entities.SessionDocument {
		fields["last_document_id"] = event.DocumentID
	}

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if m.ttl > 0 {
			pipe.Expire(ctx, key, m.ttl)
		}
		return nil
	})
	return err
}

// Lookup reads a mirrored session. ok is false when no hash exists.
func (m *Mirror) Lookup(ctx context.Context, sessionID string) (map[string]string, bool, error) {
	fields, err := m.client.HGetAll(ctx, Key(sessionID)).Result()
	if err != nil {
		return nil, false, err
	}
	return fields, len(fields) > 0, nil
}
