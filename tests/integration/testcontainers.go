//go:build integration

// Package integration 在 testcontainers 启动的 Postgres/Redis 上跑预订流程
package integration

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/common/cache"
	"github.com/dumeirei/villa-booking-backend/internal/common/config"
	"github.com/dumeirei/villa-booking-backend/internal/common/database"
)

const (
	postgresImage = "postgres:15-alpine"
	redisImage    = "redis:7-alpine"
)

// backends 一次测试用到的存储
type backends struct {
	db    *gorm.DB
	redis *redis.Client
}

// startBackends 启动容器并走生产的 Init 路径连接，测试结束时终止容器
func startBackends(t *testing.T) *backends {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	return &backends{
		db:    startPostgres(ctx, t),
		redis: startRedis(ctx, t),
	}
}

func startPostgres(ctx context.Context, t *testing.T) *gorm.DB {
	t.Helper()
	dbCfg := config.DatabaseConfig{
		Driver:       "postgres",
		User:         "villa",
		Password:     "villa_test",
		Name:         "villa_booking_test",
		SSLMode:      "disable",
		Timezone:     "Asia/Shanghai",
		MaxOpenConns: 32,
		MaxIdleConns: 8,
	}

	c, err := tcPostgres.Run(ctx, postgresImage,
		tcPostgres.WithDatabase(dbCfg.Name),
		tcPostgres.WithUsername(dbCfg.User),
		tcPostgres.WithPassword(dbCfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start postgres")

	mapped, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dbCfg.Host, dbCfg.Port = endpoint(ctx, t, c, mapped.Port())
	db, err := database.Init(&dbCfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()
	c, err := tcRedis.Run(ctx, redisImage,
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start redis")

	mapped, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	var redisCfg config.RedisConfig
	redisCfg.Host, redisCfg.Port = endpoint(ctx, t, c, mapped.Port())
	client, err := cache.Init(&redisCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// endpoint 组合宿主机地址与已映射端口
func endpoint(ctx context.Context, t *testing.T, c testcontainers.Container, port string) (string, int) {
	t.Helper()
	host, err := c.Host(ctx)
	require.NoError(t, err)
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, n
}
