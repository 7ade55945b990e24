// Package config 读取 YAML 配置，环境变量可覆盖任意键
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	SMS       SMSConfig       `mapstructure:"sms"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Business  BusinessConfig  `mapstructure:"business"`
}

// ServerConfig HTTP 服务配置，超时单位为秒
type ServerConfig struct {
	Mode            string `mapstructure:"mode"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

// ShutdownDuration 优雅关闭的最长等待时间
func (s *ServerConfig) ShutdownDuration() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// DatabaseConfig 数据库配置，driver 取 postgres 或 sqlite
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogMode         bool   `mapstructure:"log_mode"`
	SlowThreshold   int    `mapstructure:"slow_threshold"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Addr 返回 Redis 地址
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker         string `mapstructure:"broker"`
	ClientIDPrefix string `mapstructure:"client_id_prefix"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	KeepAlive      int    `mapstructure:"keep_alive"`
	AutoReconnect  bool   `mapstructure:"auto_reconnect"`
	ConnectTimeout int    `mapstructure:"connect_timeout"`
	QoS            byte   `mapstructure:"qos"`
	Retained       bool   `mapstructure:"retained"`
	TopicPrefix    string `mapstructure:"topic_prefix"`
}

// SMSConfig 短信配置，provider 为 mock 时只记录不发送
type SMSConfig struct {
	Provider        string             `mapstructure:"provider"`
	AccessKeyID     string             `mapstructure:"access_key_id"`
	AccessKeySecret string             `mapstructure:"access_key_secret"`
	SignName        string             `mapstructure:"sign_name"`
	Endpoint        string             `mapstructure:"endpoint"`
	Templates       SMSTemplatesConfig `mapstructure:"templates"`
}

// SMSTemplatesConfig 各预订事件的短信模板编码，留空表示不发送
type SMSTemplatesConfig struct {
	Created   string `mapstructure:"created"`
	Confirmed string `mapstructure:"confirmed"`
	Cancelled string `mapstructure:"cancelled"`
	Expired   string `mapstructure:"expired"`
}

// JWTConfig 访问令牌校验配置，密钥与账号服务共用
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	AccessTokenExpire int    `mapstructure:"access_token_expire"`
	Issuer            string `mapstructure:"issuer"`
}

// AccessTokenDuration 返回访问令牌有效期
func (j *JWTConfig) AccessTokenDuration() time.Duration {
	return time.Duration(j.AccessTokenExpire) * time.Hour
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
	Service    string `mapstructure:"service"` // 写入每条日志的 service 字段
}

// MetricsConfig 指标在 API 端口的 path 上暴露
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	BookingPerMinute  int  `mapstructure:"booking_per_minute"`
}

// SchedulerConfig 定时任务配置，表达式带秒字段
type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ExpirePendingSpec  string `mapstructure:"expire_pending_spec"`
	PruneCalendarSpec  string `mapstructure:"prune_calendar_spec"`
	CalendarRetainDays int    `mapstructure:"calendar_retain_days"`
	ExpirePendingBatch int    `mapstructure:"expire_pending_batch"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// BusinessConfig 业务配置
type BusinessConfig struct {
	Booking BookingConfig `mapstructure:"booking"`
}

// BookingConfig 预订配置
type BookingConfig struct {
	CalendarCacheTTL    int      `mapstructure:"calendar_cache_ttl"`
	MaxCalendarDays     int      `mapstructure:"max_calendar_days"`
	NotifyChannelPrefix string   `mapstructure:"notify_channel_prefix"`
	NotifySinks         []string `mapstructure:"notify_sinks"`
	BookingNoPrefix     string   `mapstructure:"booking_no_prefix"`
	EnforceCancellation bool     `mapstructure:"enforce_cancellation"`
	PendingExpireHours  int      `mapstructure:"pending_expire_hours"`
	MaxStayNights       int      `mapstructure:"max_stay_nights"`
}

// PendingExpireDuration 返回待确认预订的超时时长，0 表示不过期
func (b *BookingConfig) PendingExpireDuration() time.Duration {
	return time.Duration(b.PendingExpireHours) * time.Hour
}

// CalendarCacheDuration 返回不可订日期缓存有效期
func (b *BookingConfig) CalendarCacheDuration() time.Duration {
	return time.Duration(b.CalendarCacheTTL) * time.Second
}

// Load 加载配置文件，只在首次调用时读取
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		globalConfig, err = read(configPath)
	})
	return globalConfig, err
}

// read 按 默认值 < 配置文件 < 环境变量 的优先级合成配置
// configPath 为空时在 ./configs 与当前目录查找 config.yaml，找不到则只用默认值
func read(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// BUSINESS_BOOKING_PENDING_EXPIRE_HOURS 覆盖 business.booking.pending_expire_hours
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Get 返回 Load 读到的配置，未加载时只含默认值
func Get() *Config {
	if globalConfig == nil {
		v := viper.New()
		setDefaults(v)
		globalConfig = &Config{}
		_ = v.Unmarshal(globalConfig)
	}
	return globalConfig
}

// defaults 按配置段分组的默认值
// 只有出现在这里的键才能被环境变量覆盖，密钥类配置因此保留空串
var defaults = map[string]map[string]interface{}{
	"server": {
		"mode":             "debug",
		"port":             8000,
		"read_timeout":     30,
		"write_timeout":    30,
		"shutdown_timeout": 15,
	},
	"database": {
		"driver":            "postgres",
		"host":              "localhost",
		"port":              5432,
		"user":              "postgres",
		"password":          "postgres",
		"name":              "villa_booking",
		"sslmode":           "disable",
		"timezone":          "Asia/Shanghai",
		"max_idle_conns":    10,
		"max_open_conns":    100,
		"conn_max_lifetime": 60,
		"log_mode":          true,
		"slow_threshold":    200,
	},
	"redis": {
		"host":           "localhost",
		"port":           6379,
		"password":       "",
		"db":             0,
		"pool_size":      100,
		"min_idle_conns": 10,
		"dial_timeout":   5,
		"read_timeout":   3,
		"write_timeout":  3,
	},
	"mqtt": {
		"broker":           "tcp://localhost:1883",
		"client_id_prefix": "villa-booking-",
		"username":         "",
		"password":         "",
		"keep_alive":       60,
		"auto_reconnect":   true,
		"connect_timeout":  10,
		"qos":              1,
		"retained":         false,
		"topic_prefix":     "villa-booking/",
	},
	"sms": {
		"provider":          "mock",
		"access_key_id":     "",
		"access_key_secret": "",
		"sign_name":         "别墅预订",
		"endpoint":          "dysmsapi.aliyuncs.com",
	},
	"jwt": {
		"secret":              "change-me-in-production",
		"access_token_expire": 168,
		"issuer":              "villa-booking",
	},
	"logger": {
		"level":       "debug",
		"service":     "villa-booking",
		"format":      "console",
		"output":      "stdout",
		"file_path":   "./logs/app.log",
		"max_size":    100,
		"max_backups": 10,
		"max_age":     30,
		"compress":    true,
		"caller":      true,
	},
	"metrics": {
		"enabled": true,
		"path":    "/metrics",
	},
	"tracing": {
		"enabled":      false,
		"service_name": "villa-booking-backend",
		"endpoint":     "",
		"sample_rate":  1.0,
	},
	"ratelimit": {
		"enabled":             true,
		"requests_per_minute": 600,
		"booking_per_minute":  10,
	},
	"scheduler": {
		"enabled":              true,
		"expire_pending_spec":  "0 */10 * * * *",
		"prune_calendar_spec":  "0 30 3 * * *",
		"calendar_retain_days": 90,
		"expire_pending_batch": 200,
	},
	"cors": {
		"allowed_origins":   []string{"*"},
		"allowed_methods":   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		"allowed_headers":   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		"exposed_headers":   []string{"X-Request-ID", "X-Trace-ID", "Retry-After"},
		"allow_credentials": true,
		"max_age":           86400,
	},
	"business.booking": {
		"calendar_cache_ttl":    300,
		"max_calendar_days":     366,
		"notify_channel_prefix": "villa-booking:notify:",
		"notify_sinks":          []string{"store", "redis"},
		"booking_no_prefix":     "V",
		"enforce_cancellation":  false,
		"pending_expire_hours":  48,
		"max_stay_nights":       90,
	},
}

func setDefaults(v *viper.Viper) {
	for section, values := range defaults {
		for key, value := range values {
			v.SetDefault(section+"."+key, value)
		}
	}
}

func (c *Config) IsDebug() bool   { return c.Server.Mode == "debug" }
func (c *Config) IsRelease() bool { return c.Server.Mode == "release" }
