package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/pengaduan/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

func ConnectRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	RedisClient = client
	log.Println("Redis connected successfully")
	return client, nil
}

func CloseRedis(client *redis.Client) error {
	return client.Close()
}

const (
	sessionKeyPrefix   = "session:"
	blacklistKeyPrefix = "blacklist:"
)

// SessionStore keeps one session record per authenticated user and a
// blacklist of revoked tokens. Both expire on their own; logout deletes the
// session and blacklists the access token for its remaining lifetime.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) SetUserSession(ctx context.Context, userID string, sessionData interface{}, expiration time.Duration) error {
	data, err := json.Marshal(sessionData)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKeyPrefix+userID, data, expiration).Err()
}

func (s *SessionStore) DeleteUserSession(ctx context.Context, userID string) error {
	return s.client.Del(ctx, sessionKeyPrefix+userID).Err()
}

func (s *SessionStore) BlacklistToken(ctx context.Context, token string, expiration time.Duration) error {
	return s.client.Set(ctx, blacklistKeyPrefix+token, "1", expiration).Err()
}

func (s *SessionStore) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	count, err := s.client.Exists(ctx, blacklistKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
