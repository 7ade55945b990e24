package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dumeirei/villa-booking-backend/internal/common/config"
	"github.com/dumeirei/villa-booking-backend/internal/models"
)

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, getLogLevel(true))
	assert.Equal(t, gormlogger.Warn, getLogLevel(false))
}

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		want    string
		wantErr bool
	}{
		{"默认 postgres", "", "postgres", false},
		{"postgres", "postgres", "postgres", false},
		{"sqlite", "sqlite", "sqlite", false},
		{"不支持的驱动", "mysql", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialector, err := dialectorFor(&config.DatabaseConfig{Driver: tt.driver, Name: ":memory:"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dialector.Name())
		})
	}
}

func TestInit_SQLiteSingleWriter(t *testing.T) {
	gdb, err := Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 50,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMigrate_CreatesBookingTables(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(testDB))

	for _, table := range []string{"users", "villas", "calendar_blocks", "bookings", "notifications"} {
		assert.True(t, testDB.Migrator().HasTable(table), table)
	}
	assert.True(t, testDB.Migrator().HasIndex(&models.CalendarBlock{}, "uk_calendar_villa_date"))
	assert.True(t, testDB.Migrator().HasIndex(&models.Booking{}, "idx_booking_villa_range"))

	// 重复迁移幂等
	require.NoError(t, Migrate(testDB))
}

func TestGormLogger_SlowQuery(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := newGormLogger(zap.New(core), &config.DatabaseConfig{SlowThreshold: 10})

	begin := time.Now().Add(-50 * time.Millisecond)
	l.Trace(context.Background(), begin, func() (string, int64) {
		return "SELECT * FROM bookings", 1
	}, nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "gorm", entry.LoggerName)
	assert.Contains(t, entry.Message, "SLOW SQL")
	assert.Contains(t, entry.Message, "SELECT * FROM bookings")
}
