// Package transcript stores conversation history per user in Redis lists.
// The extraction pipeline reads a bounded window of recent turns, not the
// whole history.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Turn is one conversation message.
type Turn struct {
	Speaker   string    `json:"speaker"` // "user" or "expert"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SpeakerUser   = "user"
	SpeakerExpert = "expert"
)

const keyPrefix = "bmc:transcript:"

// Store keeps per-user transcripts in Redis.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis and returns a transcript store. ttl of zero keeps
// transcripts forever.
func New(redisURL string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func key(token string) string {
	return keyPrefix + token
}

// Append adds turns to the end of a user's transcript.
func (s *Store) Append(ctx context.Context, token string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		if t.Timestamp.IsZero() {
			t.Timestamp = time.Now()
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, data)
	}
	if err := s.rdb.RPush(ctx, key(token), values...).Err(); err != nil {
		return fmt.Errorf("append transcript %s: %w", token, err)
	}
	if s.ttl > 0 {
		s.rdb.Expire(ctx, key(token), s.ttl)
	}
	return nil
}

// Window returns the last n turns, oldest first.
func (s *Store) Window(ctx context.Context, token string, n int) ([]Turn, error) {
	raw, err := s.rdb.LRange(ctx, key(token), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", token, err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			s.logger.Warn("skipping malformed transcript entry", zap.String("token", token))
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Clear removes a user's transcript.
func (s *Store) Clear(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("clear transcript %s: %w", token, err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Render formats turns as the "User: ...\nExpert: ..." text the extraction
// prompt expects.
func Render(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		role := "Expert"
		if t.Speaker == SpeakerUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Text)
	}
	return b.String()
}
