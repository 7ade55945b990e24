// Package logger 全局 zap 日志器与业务字段
package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dumeirei/villa-booking-backend/internal/common/config"
)

const defaultService = "villa-booking"

var log *zap.Logger

// Init 按配置构建全局日志器
// output 取 stdout、file 或 both，file 与 both 需要 file_path
func Init(cfg *config.LoggerConfig) error {
	l, err := build(cfg)
	if err != nil {
		return err
	}
	log = l
	return nil
}

func build(cfg *config.LoggerConfig) (*zap.Logger, error) {
	out, err := sinks(cfg)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(encoder(cfg.Format), zapcore.NewMultiWriteSyncer(out...), getLogLevel(cfg.Level))

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		// 跳过本包的包装函数
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	service := cfg.Service
	if service == "" {
		service = defaultService
	}
	return zap.New(core, opts...).With(zap.String("service", service)), nil
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	ec.EncodeDuration = zapcore.SecondsDurationEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func sinks(cfg *config.LoggerConfig) ([]zapcore.WriteSyncer, error) {
	var out []zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		return append(out, zapcore.AddSync(os.Stdout)), nil
	case "both":
		out = append(out, zapcore.AddSync(os.Stdout))
	case "file":
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log output %q requires file_path", cfg.Output)
	}
	return append(out, zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	})), nil
}

// getLogLevel 无法识别或高于 error 时取 info
func getLogLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil || l > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return l
}

// SetLogger 替换全局日志器，返回原日志器
func SetLogger(l *zap.Logger) *zap.Logger {
	prev := log
	log = l
	return prev
}

// GetLogger 未初始化时返回开发模式日志器
func GetLogger() *zap.Logger {
	if log == nil {
		log, _ = zap.NewDevelopment()
	}
	return log
}

func Sync() error {
	if log == nil {
		return nil
	}
	return log.Sync()
}

func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { GetLogger().Fatal(msg, fields...) }

// 业务字段，键名与访问日志和追踪属性保持一致

func UserID(id int64) zap.Field         { return zap.Int64("user_id", id) }
func VillaID(id int64) zap.Field        { return zap.Int64("villa_id", id) }
func BookingID(id int64) zap.Field      { return zap.Int64("booking_id", id) }
func BookingNo(no string) zap.Field     { return zap.String("booking_no", no) }
func Status(status string) zap.Field    { return zap.String("status", status) }
func Latency(d time.Duration) zap.Field { return zap.Duration("latency", d) }

// StayRange 入住区间，格式 start/end
func StayRange(start, end string) zap.Field {
	return zap.String("stay", start+"/"+end)
}
