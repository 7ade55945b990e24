package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/pkg/mqtt"
)

const readyTimeout = 3 * time.Second

// HealthResponse 健康与就绪检查响应
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// readyCheck 单个依赖的探测，返回 nil 表示可用
type readyCheck func(ctx context.Context) error

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: version, Timestamp: time.Now().Unix()})
}

func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// readyHandler 数据库与 Redis 都可用才算就绪
// MQTT 断线只降级通知，不影响预订，因此只报告状态不参与判定
func readyHandler(db *gorm.DB, redisClient redis.UniversalClient, mqttClient *mqtt.Client) gin.HandlerFunc {
	required := map[string]readyCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		resp := HealthResponse{Status: "ready", Version: version, Timestamp: time.Now().Unix(), Checks: map[string]string{}}
		for name, check := range required {
			if err := check(ctx); err != nil {
				resp.Checks[name] = "error: " + err.Error()
				resp.Status = "not ready"
				continue
			}
			resp.Checks[name] = "ok"
		}
		if mqttClient != nil {
			resp.Checks["mqtt"] = "disconnected"
			if mqttClient.IsConnected() {
				resp.Checks["mqtt"] = "ok"
			}
		}

		status := http.StatusOK
		if resp.Status != "ready" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
