// Package main 是应用程序入口
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/common/cache"
	"github.com/dumeirei/villa-booking-backend/internal/common/config"
	"github.com/dumeirei/villa-booking-backend/internal/common/jwt"
	"github.com/dumeirei/villa-booking-backend/internal/common/metrics"
	commonMiddleware "github.com/dumeirei/villa-booking-backend/internal/common/middleware"
	"github.com/dumeirei/villa-booking-backend/internal/common/qrcode"
	notificationHandler "github.com/dumeirei/villa-booking-backend/internal/handler/notification"
	villaHandler "github.com/dumeirei/villa-booking-backend/internal/handler/villa"
	"github.com/dumeirei/villa-booking-backend/internal/middleware"
	"github.com/dumeirei/villa-booking-backend/internal/repository"
	"github.com/dumeirei/villa-booking-backend/internal/scheduler"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
	"github.com/dumeirei/villa-booking-backend/internal/service/notify"
	villaService "github.com/dumeirei/villa-booking-backend/internal/service/villa"
	"github.com/dumeirei/villa-booking-backend/pkg/mqtt"
	"github.com/dumeirei/villa-booking-backend/pkg/sms"
)

// maxRequestBody 请求体上限，日历批量操作最多几百个日期
const maxRequestBody = 1 << 20

// routerDeps 路由依赖
type routerDeps struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	redis   redis.UniversalClient
	metrics *metrics.Metrics
	mqtt    *mqtt.Client
	sms     sms.Sender
}

// application 路由组装产物
type application struct {
	manager   *booking.Manager
	scheduler *scheduler.Scheduler
}

// setupRouter 设置路由
func setupRouter(r *gin.Engine, deps *routerDeps) *application {
	cfg := deps.cfg
	bookingCfg := &cfg.Business.Booking

	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenDuration(),
		Issuer:           cfg.JWT.Issuer,
	})

	// 初始化仓储
	userRepo := repository.NewUserRepository(deps.db)
	villaRepo := repository.NewVillaRepository(deps.db)
	bookingRepo := repository.NewBookingRepository(deps.db)
	blockRepo := repository.NewCalendarBlockRepository(deps.db)
	notificationRepo := repository.NewNotificationRepository(deps.db)

	// 通知出口
	store := cache.NewStore(deps.redis)
	notifyDeps := notify.Deps{
		TopicPrefix:   cfg.MQTT.TopicPrefix,
		Redis:         store,
		ChannelPrefix: bookingCfg.NotifyChannelPrefix,
		Store:         notificationRepo,
		Phones:        userRepo,
		SMSTemplates: map[string]string{
			notify.EventCreated:   cfg.SMS.Templates.Created,
			notify.EventConfirmed: cfg.SMS.Templates.Confirmed,
			notify.EventCancelled: cfg.SMS.Templates.Cancelled,
			notify.EventExpired:   cfg.SMS.Templates.Expired,
		},
	}
	if deps.mqtt != nil {
		notifyDeps.MQTT = deps.mqtt
	}
	if deps.sms != nil {
		notifyDeps.SMS = deps.sms
	}
	sink := notify.Build(bookingCfg.NotifySinks, notifyDeps, deps.metrics, deps.logger)

	// 初始化服务
	var calendarCache *booking.CalendarCache
	if bookingCfg.CalendarCacheTTL > 0 {
		calendarCache = booking.NewCalendarCache(store, bookingCfg.CalendarCacheDuration(), deps.metrics)
	}
	ledger := booking.NewLedger(villaRepo, bookingRepo, blockRepo, calendarCache, bookingCfg.MaxCalendarDays)

	opts := booking.ManagerOptions{
		Sink:            sink,
		Metrics:         deps.metrics,
		BookingNoPrefix: bookingCfg.BookingNoPrefix,
		MaxStayNights:   bookingCfg.MaxStayNights,
	}
	if bookingCfg.EnforceCancellation {
		opts.Policy = booking.DefaultNoticePolicy()
	}
	manager := booking.NewManager(villaRepo, userRepo, bookingRepo, ledger, opts)
	villaSvc := villaService.NewService(villaRepo)

	app := &application{manager: manager}
	if cfg.Scheduler.Enabled {
		app.scheduler = scheduler.NewScheduler()
		if err := scheduler.Register(app.scheduler, scheduler.NewTaskHandler(manager, blockRepo, cfg), &cfg.Scheduler); err != nil {
			deps.logger.Fatal("Failed to register scheduled tasks", zap.Error(err))
		}
	}

	// 初始化处理器
	villaH := villaHandler.NewHandler(villaSvc, manager)
	bookingH := villaHandler.NewBookingHandler(manager, qrcode.NewRenderer(320))
	notificationH := notificationHandler.NewHandler(notificationRepo)

	// 全局中间件
	r.Use(middleware.Recovery(deps.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.SecureHeaders())
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ping", "/ready", "/metrics"},
		}))
	}
	r.Use(middleware.CORS(&cfg.CORS))
	r.Use(middleware.AccessLog(deps.logger))
	if deps.metrics != nil {
		r.Use(deps.metrics.Middleware())
		metricsPath := cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.GET(metricsPath, metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(deps.db, deps.redis, deps.mqtt))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequestSizeLimiter(maxRequestBody))
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute > 0 {
		v1.Use(middleware.IPRateLimit(deps.redis, cfg.RateLimit.RequestsPerMinute, time.Minute))
	}
	{
		// 公开接口，登录可选
		public := v1.Group("")
		public.Use(middleware.OptionalAuth(jwtManager))
		villaH.RegisterPublicRoutes(public)

		// 用户端接口（需要用户认证）
		user := v1.Group("")
		user.Use(middleware.UserAuth(jwtManager))
		{
			var submit []gin.HandlerFunc
			if cfg.RateLimit.Enabled && cfg.RateLimit.BookingPerMinute > 0 {
				submit = append(submit, middleware.UserRateLimit(deps.redis, "booking", cfg.RateLimit.BookingPerMinute, time.Minute))
			}
			villaH.RegisterRoutes(user)
			bookingH.RegisterRoutes(user, submit...)
			notificationH.RegisterRoutes(user)
		}

		// 管理后台接口
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(jwtManager))
		{
			villaH.RegisterAdminRoutes(admin)
			bookingH.RegisterAdminRoutes(admin)
		}
	}

	return app
}
