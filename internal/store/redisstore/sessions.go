// Package redisstore keeps refresh sessions in Redis. Keys expire with the
// session, so the store never needs a sweeper.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oscarmarin21/Admin/internal/auth"
)

var _ auth.SessionStore = (*Sessions)(nil)

// Sessions stores each session under <prefix>id with secondary keys for
// the refresh token digest and the owning user.
type Sessions struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessions creates a Redis-backed session store.
func NewSessions(client redis.UniversalClient) *Sessions {
	return NewSessionsWithPrefix(client, "session:")
}

// NewSessionsWithPrefix creates a session store with a custom key prefix.
func NewSessionsWithPrefix(client redis.UniversalClient, prefix string) *Sessions {
	return &Sessions{client: client, prefix: prefix, now: time.Now}
}

func (s *Sessions) idKey(id string) string     { return s.prefix + id }
func (s *Sessions) hashKey(hash string) string { return s.prefix + "hash:" + hash }
func (s *Sessions) userKey(uid string) string  { return s.prefix + "user:" + uid }

func (s *Sessions) Create(ctx context.Context, sess *auth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	now := s.now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	ttl := sess.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return errors.New("session is expired")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.idKey(sess.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !created {
		return auth.ErrConflict
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.hashKey(sess.RefreshTokenHash), sess.ID, ttl)
		p.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
		p.Expire(ctx, s.userKey(sess.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis index session: %w", err)
	}
	return nil
}

func (s *Sessions) FindByID(ctx context.Context, id string) (*auth.Session, error) {
	if id == "" {
		return nil, auth.ErrNotFound
	}
	data, err := s.client.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var sess auth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *Sessions) FindByRefreshHash(ctx context.Context, hash string) (*auth.Session, error) {
	id, err := s.client.Get(ctx, s.hashKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	sess, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// The index may briefly outlive a rotated session.
	if sess.RefreshTokenHash != hash {
		return nil, auth.ErrNotFound
	}
	return sess, nil
}

// DeleteByID removes the session with GETDEL; only the caller that
// received the payload reports true.
func (s *Sessions) DeleteByID(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	data, err := s.client.GetDel(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis getdel: %w", err)
	}
	var sess auth.Session
	if err := json.Unmarshal(data, &sess); err == nil {
		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, s.hashKey(sess.RefreshTokenHash))
			p.SRem(ctx, s.userKey(sess.UserID), id)
			return nil
		})
		if err != nil {
			return true, fmt.Errorf("redis unindex session: %w", err)
		}
	}
	return true, nil
}

func (s *Sessions) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis smembers: %w", err)
	}
	n := 0
	for _, id := range ids {
		removed, err := s.DeleteByID(ctx, id)
		if err != nil {
			return n, err
		}
		if removed {
			n++
		}
	}
	if err := s.client.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return n, fmt.Errorf("redis del: %w", err)
	}
	return n, nil
}

// Check pings Redis for readiness.
func (s *Sessions) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
