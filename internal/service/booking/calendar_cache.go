package booking

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/villa-booking-backend/internal/common/cache"
	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
	"github.com/dumeirei/villa-booking-backend/internal/common/metrics"
)

const calendarCacheName = "calendar"

// CalendarCache 不可订日期的读穿缓存
// 每个房源一个版本号，窗口键带版本号；失效时递增版本号，旧窗口自然过期
type CalendarCache struct {
	store   *cache.Store
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewCalendarCache store 为 nil 或 ttl <= 0 时缓存关闭
func NewCalendarCache(store *cache.Store, ttl time.Duration, m *metrics.Metrics) *CalendarCache {
	return &CalendarCache{store: store, ttl: ttl, metrics: m}
}

// Enabled 缓存是否开启
func (c *CalendarCache) Enabled() bool {
	return c != nil && c.store != nil && c.ttl > 0
}

func versionKey(villaID int64) string {
	return cache.BuildKey(cache.KeyPrefixCalendarVersion, strconv.FormatInt(villaID, 10))
}

func windowKey(villaID, version int64, start, end string) string {
	return cache.BuildKey(cache.KeyPrefixCalendar,
		strconv.FormatInt(villaID, 10), "v"+strconv.FormatInt(version, 10), start, end)
}

// Lookup 查询窗口缓存
// 返回的版本号需在回填时原样传给 Fill，保证回填的是读库前的版本
func (c *CalendarCache) Lookup(ctx context.Context, villaID int64, start, end string) (dates []string, version int64, hit bool) {
	if !c.Enabled() {
		return nil, 0, false
	}

	version, err := c.store.Version(ctx, versionKey(villaID))
	if err != nil {
		logger.Warn("Calendar cache version read failed", logger.VillaID(villaID), zap.Error(err))
		return nil, -1, false
	}

	found, err := c.store.GetJSON(ctx, windowKey(villaID, version, start, end), &dates)
	if err != nil {
		logger.Warn("Calendar cache read failed", logger.VillaID(villaID), zap.Error(err))
		return nil, -1, false
	}
	if !found {
		c.recordMiss()
		return nil, version, false
	}

	c.recordHit()
	return dates, version, true
}

// Fill 回填窗口，version < 0 表示读取版本号失败，不回填
func (c *CalendarCache) Fill(ctx context.Context, villaID, version int64, start, end string, dates []string) {
	if !c.Enabled() || version < 0 {
		return
	}
	if err := c.store.SetJSON(ctx, windowKey(villaID, version, start, end), dates, c.ttl); err != nil {
		logger.Warn("Calendar cache write failed", logger.VillaID(villaID), zap.Error(err))
	}
}

// Invalidate 使房源的全部窗口失效
func (c *CalendarCache) Invalidate(ctx context.Context, villaID int64) {
	if !c.Enabled() {
		return
	}
	if _, err := c.store.Bump(ctx, versionKey(villaID)); err != nil {
		logger.Warn("Calendar cache invalidate failed", logger.VillaID(villaID), zap.Error(err))
	}
}

func (c *CalendarCache) recordHit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(calendarCacheName)
	}
}

func (c *CalendarCache) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(calendarCacheName)
	}
}
