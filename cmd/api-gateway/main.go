// Package main 是应用程序入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/villa-booking-backend/internal/common/cache"
	"github.com/dumeirei/villa-booking-backend/internal/common/config"
	"github.com/dumeirei/villa-booking-backend/internal/common/database"
	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
	"github.com/dumeirei/villa-booking-backend/internal/common/metrics"
	"github.com/dumeirei/villa-booking-backend/internal/common/tracing"
	"github.com/dumeirei/villa-booking-backend/pkg/mqtt"
	"github.com/dumeirei/villa-booking-backend/pkg/sms"
)

const version = "1.0.0"

func main() {
	// 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()

	log.Info("Starting Villa Booking Backend",
		zap.String("version", version),
		zap.String("env", cfg.Server.Mode),
	)

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// 初始化 Redis 连接
	redisClient, err := cache.Init(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Redis connected successfully")

	// 指标与链路追踪
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.Init("")
	}
	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	// MQTT 仅在启用对应通知出口时连接
	var mqttClient *mqtt.Client
	if hasSink(cfg.Business.Booking.NotifySinks, "mqtt") {
		mqttClient = mqtt.NewClient(&mqtt.Config{
			Broker:         cfg.MQTT.Broker,
			ClientIDPrefix: cfg.MQTT.ClientIDPrefix,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			KeepAlive:      time.Duration(cfg.MQTT.KeepAlive) * time.Second,
			ConnectTimeout: time.Duration(cfg.MQTT.ConnectTimeout) * time.Second,
			AutoReconnect:  cfg.MQTT.AutoReconnect,
			QoS:            cfg.MQTT.QoS,
			Retained:       cfg.MQTT.Retained,
		}, log)
		if err := mqttClient.Connect(); err != nil {
			log.Warn("MQTT connect failed, notifications will retry on reconnect", zap.Error(err))
		}
		defer mqttClient.Disconnect()
	}

	// 短信出口，开发环境使用 Mock
	var smsSender sms.Sender
	if hasSink(cfg.Business.Booking.NotifySinks, "sms") {
		smsSender, err = newSMSSender(&cfg.SMS)
		if err != nil {
			log.Fatal("Failed to init sms sender", zap.Error(err))
		}
	}

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 设置路由
	app := setupRouter(engine, &routerDeps{
		cfg:     cfg,
		logger:  log,
		db:      db,
		redis:   redisClient,
		metrics: m,
		mqtt:    mqttClient,
		sms:     smsSender,
	})

	// 定时任务
	if app.scheduler != nil {
		app.scheduler.Start()
	}

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownDuration())
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}

	// 关闭数据库连接
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}

	log.Info("Server exited")
}

func newSMSSender(cfg *config.SMSConfig) (sms.Sender, error) {
	if cfg.Provider != "aliyun" {
		return sms.NewMockSender(), nil
	}
	return sms.NewAliyunSender(&sms.Config{
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
		SignName:        cfg.SignName,
		Endpoint:        cfg.Endpoint,
	})
}

func hasSink(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
