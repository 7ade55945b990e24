// Package notify 投递预订事件给房客与房东
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/villa-booking-backend/internal/common/cache"
	"github.com/dumeirei/villa-booking-backend/internal/common/metrics"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/pkg/sms"
)

// 事件类型
const (
	EventCreated   = "booking.created"
	EventConfirmed = "booking.confirmed"
	EventCancelled = "booking.cancelled"
	EventExpired   = "booking.expired"
)

// 接收方角色
const (
	RoleGuest = "guest"
	RoleHost  = "host"
)

// Event 单个接收方的预订事件，携带完整的最新预订记录
type Event struct {
	Type        string          `json:"type"`
	RecipientID int64           `json:"recipient_id"`
	Role        string          `json:"role"`
	Booking     *models.Booking `json:"booking"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// EventsFor 为预订的房客和房东各生成一个事件
// 房东给自己下单时只生成一个
func EventsFor(eventType string, booking *models.Booking, at time.Time) []Event {
	events := []Event{{
		Type:        eventType,
		RecipientID: booking.GuestUserID,
		Role:        RoleGuest,
		Booking:     booking,
		OccurredAt:  at,
	}}
	if booking.HostUserID != booking.GuestUserID {
		events = append(events, Event{
			Type:        eventType,
			RecipientID: booking.HostUserID,
			Role:        RoleHost,
			Booking:     booking,
			OccurredAt:  at,
		})
	}
	return events
}

// Sink 通知出口
type Sink interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}

// ============================================================================
// NopSink
// ============================================================================

// NopSink 丢弃所有事件
type NopSink struct{}

// Name 名称
func (NopSink) Name() string { return "nop" }

// Publish 不做任何事
func (NopSink) Publish(context.Context, Event) error { return nil }

// ============================================================================
// MQTTSink
// ============================================================================

// Publisher MQTT 发布能力，*mqtt.Client 满足该接口
type Publisher interface {
	PublishWithContext(ctx context.Context, topic string, payload interface{}) error
}

// MQTTSink 发布到 <prefix>users/<id>/bookings
type MQTTSink struct {
	publisher   Publisher
	topicPrefix string
}

// NewMQTTSink 创建 MQTT 出口
func NewMQTTSink(publisher Publisher, topicPrefix string) *MQTTSink {
	return &MQTTSink{publisher: publisher, topicPrefix: topicPrefix}
}

// Name 名称
func (s *MQTTSink) Name() string { return "mqtt" }

// Topic 接收方的主题
func (s *MQTTSink) Topic(recipientID int64) string {
	return fmt.Sprintf("%susers/%d/bookings", s.topicPrefix, recipientID)
}

// Publish 发布事件
func (s *MQTTSink) Publish(ctx context.Context, event Event) error {
	return s.publisher.PublishWithContext(ctx, s.Topic(event.RecipientID), event)
}

// ============================================================================
// RedisSink
// ============================================================================

// RedisSink 通过 Redis PUBLISH 推给 websocket 网关
type RedisSink struct {
	store  *cache.Store
	prefix string
}

// NewRedisSink 创建 Redis 出口
func NewRedisSink(store *cache.Store, prefix string) *RedisSink {
	return &RedisSink{store: store, prefix: prefix}
}

// Name 名称
func (s *RedisSink) Name() string { return "redis" }

// Channel 接收方的频道
func (s *RedisSink) Channel(recipientID int64) string {
	return s.prefix + "user:" + strconv.FormatInt(recipientID, 10)
}

// Publish 发布事件
func (s *RedisSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.store.Publish(ctx, s.Channel(event.RecipientID), payload)
}

// ============================================================================
// SMSSink
// ============================================================================

// PhoneLookup 查询接收方手机号
type PhoneLookup interface {
	PhoneOf(ctx context.Context, userID int64) (string, error)
}

// SMSSink 按事件类型选择短信模板，未绑定手机或未配置模板时跳过
type SMSSink struct {
	sender    sms.Sender
	phones    PhoneLookup
	templates map[string]string
}

// NewSMSSink 创建短信出口，templates 为事件类型到模板编码的映射
func NewSMSSink(sender sms.Sender, phones PhoneLookup, templates map[string]string) *SMSSink {
	return &SMSSink{sender: sender, phones: phones, templates: templates}
}

// Name 名称
func (s *SMSSink) Name() string { return "sms" }

// Publish 发送短信
func (s *SMSSink) Publish(ctx context.Context, event Event) error {
	template, ok := s.templates[event.Type]
	if !ok || template == "" {
		return nil
	}
	phone, err := s.phones.PhoneOf(ctx, event.RecipientID)
	if err != nil {
		return fmt.Errorf("lookup phone: %w", err)
	}
	if phone == "" {
		return nil
	}

	b := event.Booking
	err = s.sender.Send(ctx, phone, template, map[string]string{
		"booking_no": b.BookingNo,
		"start_date": b.StartDate,
		"end_date":   b.EndDate,
	})
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", sms.MaskPhone(phone), err)
	}
	return nil
}

// ============================================================================
// StoreSink
// ============================================================================

// NotificationWriter 通知持久化
type NotificationWriter interface {
	CreateBookingNotification(ctx context.Context, userID, bookingID int64, event, title, content string) error
}

// StoreSink 写入 notifications 表，供轮询客户端读取
type StoreSink struct {
	writer NotificationWriter
}

// NewStoreSink 创建持久化出口
func NewStoreSink(writer NotificationWriter) *StoreSink {
	return &StoreSink{writer: writer}
}

// Name 名称
func (s *StoreSink) Name() string { return "store" }

// Publish 保存一条通知
func (s *StoreSink) Publish(ctx context.Context, event Event) error {
	title, content := Describe(event)
	return s.writer.CreateBookingNotification(ctx, event.RecipientID, event.Booking.ID, event.Type, title, content)
}

// Describe 生成通知标题和正文
func Describe(event Event) (title, content string) {
	b := event.Booking
	stay := fmt.Sprintf("%s 至 %s", b.StartDate, b.EndDate)

	switch event.Type {
	case EventCreated:
		if event.Role == RoleHost {
			return "收到新预订", fmt.Sprintf("预订 %s（%s）待您确认", b.BookingNo, stay)
		}
		return "预订已提交", fmt.Sprintf("预订 %s（%s）已提交，等待房东确认", b.BookingNo, stay)
	case EventConfirmed:
		return "预订已确认", fmt.Sprintf("预订 %s（%s）已确认", b.BookingNo, stay)
	case EventCancelled:
		return "预订已取消", fmt.Sprintf("预订 %s（%s）已取消", b.BookingNo, stay)
	case EventExpired:
		return "预订已过期", fmt.Sprintf("预订 %s（%s）超时未确认，已自动取消", b.BookingNo, stay)
	}
	return "预订更新", fmt.Sprintf("预订 %s（%s）状态为 %s", b.BookingNo, stay, b.Status)
}

// ============================================================================
// MultiSink
// ============================================================================

// MultiSink 依次投递到每个出口，单个出口失败不影响其他出口
type MultiSink struct {
	sinks   []Sink
	metrics *metrics.Metrics
}

// NewMultiSink 创建扇出出口，m 可为 nil
func NewMultiSink(m *metrics.Metrics, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, metrics: m}
}

// Name 名称
func (s *MultiSink) Name() string { return "multi" }

// Sinks 返回下游出口
func (s *MultiSink) Sinks() []Sink { return s.sinks }

// Publish 投递到全部出口，返回合并后的错误，由调用方记录日志
func (s *MultiSink) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range s.sinks {
		result := "ok"
		if err := sink.Publish(ctx, event); err != nil {
			result = "failed"
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
		if s.metrics != nil {
			s.metrics.RecordNotification(sink.Name(), result)
		}
	}
	return errors.Join(errs...)
}

// Deps 构建出口所需的依赖，缺少依赖的出口会被跳过
type Deps struct {
	MQTT          Publisher
	TopicPrefix   string
	Redis         *cache.Store
	ChannelPrefix string
	Store         NotificationWriter
	SMS           sms.Sender
	Phones        PhoneLookup
	SMSTemplates  map[string]string
}

// Build 按名称列表组装出口，未知名称记录告警后忽略
func Build(names []string, deps Deps, m *metrics.Metrics, log *zap.Logger) Sink {
	if log == nil {
		log = zap.NewNop()
	}

	var sinks []Sink
	for _, name := range names {
		switch name {
		case "mqtt":
			if deps.MQTT != nil {
				sinks = append(sinks, NewMQTTSink(deps.MQTT, deps.TopicPrefix))
				continue
			}
		case "redis":
			if deps.Redis != nil {
				sinks = append(sinks, NewRedisSink(deps.Redis, deps.ChannelPrefix))
				continue
			}
		case "sms":
			if deps.SMS != nil && deps.Phones != nil {
				sinks = append(sinks, NewSMSSink(deps.SMS, deps.Phones, deps.SMSTemplates))
				continue
			}
		case "store":
			if deps.Store != nil {
				sinks = append(sinks, NewStoreSink(deps.Store))
				continue
			}
		}
		log.Warn("Notification sink skipped", zap.String("sink", name))
	}

	if len(sinks) == 0 {
		return NopSink{}
	}
	return NewMultiSink(m, sinks...)
}
