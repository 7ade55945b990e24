package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Same(t, cfg, Get())

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownDuration())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "villa-booking", cfg.Logger.Service)
	assert.True(t, cfg.IsDebug())
}

func TestRead_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "villa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  mode: release
  port: 9090
database:
  driver: sqlite
  name: ./villa.db
business:
  booking:
    booking_no_prefix: "VB"
    notify_sinks: [store]
    enforce_cancellation: true
`), 0o644))
	t.Setenv("BUSINESS_BOOKING_PENDING_EXPIRE_HOURS", "6")
	t.Setenv("SMS_ACCESS_KEY_SECRET", "from-env")

	cfg, err := read(path)
	require.NoError(t, err)

	t.Run("文件覆盖默认值", func(t *testing.T) {
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.True(t, cfg.IsRelease())
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "VB", cfg.Business.Booking.BookingNoPrefix)
		assert.Equal(t, []string{"store"}, cfg.Business.Booking.NotifySinks)
		assert.True(t, cfg.Business.Booking.EnforceCancellation)
	})

	t.Run("未出现的键保留默认值", func(t *testing.T) {
		assert.Equal(t, 30, cfg.Server.ReadTimeout)
		assert.Equal(t, 366, cfg.Business.Booking.MaxCalendarDays)
	})

	t.Run("环境变量优先", func(t *testing.T) {
		assert.Equal(t, 6*time.Hour, cfg.Business.Booking.PendingExpireDuration())
		assert.Equal(t, "from-env", cfg.SMS.AccessKeySecret, "空串默认值的密钥也能由环境变量提供")
	})
}

func TestRead_Errors(t *testing.T) {
	_, err := read(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "显式指定的文件必须存在")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [port"), 0o644))
	_, err = read(bad)
	assert.Error(t, err)
}

func TestDerivedValues(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "villa", Password: "pw", Name: "booking", SSLMode: "disable", Timezone: "Asia/Shanghai"}
	assert.Equal(t, "host=db port=5433 user=villa password=pw dbname=booking sslmode=disable TimeZone=Asia/Shanghai", db.DSN())

	jwt := JWTConfig{AccessTokenExpire: 2}
	assert.Equal(t, 2*time.Hour, jwt.AccessTokenDuration())

	tests := []struct {
		name  string
		ttl   int
		hours int
		cache time.Duration
		pend  time.Duration
	}{
		{"关闭", 0, 0, 0, 0},
		{"五分钟缓存两天超时", 300, 48, 5 * time.Minute, 48 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BookingConfig{CalendarCacheTTL: tt.ttl, PendingExpireHours: tt.hours}
			assert.Equal(t, tt.cache, b.CalendarCacheDuration())
			assert.Equal(t, tt.pend, b.PendingExpireDuration())
		})
	}

	for mode, debug := range map[string]bool{"debug": true, "release": false, "test": false} {
		c := Config{Server: ServerConfig{Mode: mode}}
		assert.Equal(t, debug, c.IsDebug(), mode)
		assert.Equal(t, mode == "release", c.IsRelease(), mode)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Get()

	t.Run("预订", func(t *testing.T) {
		b := cfg.Business.Booking
		assert.Equal(t, 300, b.CalendarCacheTTL)
		assert.Equal(t, "villa-booking:notify:", b.NotifyChannelPrefix)
		assert.ElementsMatch(t, []string{"store", "redis"}, b.NotifySinks)
		assert.Equal(t, "V", b.BookingNoPrefix)
		assert.False(t, b.EnforceCancellation)
		assert.Equal(t, 48, b.PendingExpireHours)
		assert.Equal(t, 90, b.MaxStayNights)
	})

	t.Run("定时任务", func(t *testing.T) {
		assert.True(t, cfg.Scheduler.Enabled)
		assert.Equal(t, "0 */10 * * * *", cfg.Scheduler.ExpirePendingSpec)
		assert.Equal(t, "0 30 3 * * *", cfg.Scheduler.PruneCalendarSpec)
		assert.Equal(t, 90, cfg.Scheduler.CalendarRetainDays)
		assert.Equal(t, 200, cfg.Scheduler.ExpirePendingBatch)
	})

	t.Run("通知通道", func(t *testing.T) {
		assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
		assert.Equal(t, "villa-booking/", cfg.MQTT.TopicPrefix)
		assert.Equal(t, byte(1), cfg.MQTT.QoS)
		assert.Equal(t, "mock", cfg.SMS.Provider)
		assert.Equal(t, "别墅预订", cfg.SMS.SignName)
		assert.Empty(t, cfg.SMS.Templates.Created)
	})

	t.Run("接入层", func(t *testing.T) {
		assert.Contains(t, cfg.CORS.AllowedHeaders, "Authorization")
		assert.Contains(t, cfg.CORS.ExposedHeaders, "X-Trace-ID")
		assert.Equal(t, 600, cfg.RateLimit.RequestsPerMinute)
		assert.Equal(t, 10, cfg.RateLimit.BookingPerMinute)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
		assert.False(t, cfg.Tracing.Enabled)
		assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
	})

	t.Run("日志", func(t *testing.T) {
		assert.Equal(t, "debug", cfg.Logger.Level)
		assert.Equal(t, "console", cfg.Logger.Format)
		assert.Equal(t, "stdout", cfg.Logger.Output)
		assert.True(t, cfg.Logger.Caller)
	})
}
