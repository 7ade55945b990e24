// Package cache Redis 连接与 JSON 缓存
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/villa-booking-backend/internal/common/config"
)

// 键前缀
const (
	KeyPrefixCalendar        = "calendar:"
	KeyPrefixCalendarVersion = "calendar:ver:"
	KeyPrefixRateLimit       = "ratelimit:"
)

const pingTimeout = 5 * time.Second

// Init 建立连接并 PING 一次，失败时关闭客户端
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  seconds(cfg.DialTimeout),
		ReadTimeout:  seconds(cfg.ReadTimeout),
		WriteTimeout: seconds(cfg.WriteTimeout),
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// BuildKey 前缀后接以冒号分隔的各段
func BuildKey(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}

// Store JSON 值、版本计数与发布
type Store struct {
	rdb redis.UniversalClient
}

func NewStore(client redis.UniversalClient) *Store {
	return &Store{rdb: client}
}

func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.rdb.Set(ctx, key, data, ttl).Err()
}

// GetJSON 键不存在时返回 false 且不报错
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Version 读取版本计数，键不存在时为 0
func (s *Store) Version(ctx context.Context, key string) (int64, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Bump 递增版本计数，旧版本下写入的键随之失效
func (s *Store) Bump(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.rdb.Publish(ctx, channel, payload).Err()
}
