package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/villa-booking-backend/internal/common/cache"
	"github.com/dumeirei/villa-booking-backend/internal/common/metrics"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/repository"
	"github.com/dumeirei/villa-booking-backend/pkg/sms"
)

func testBooking() *models.Booking {
	return &models.Booking{
		ID:          5,
		BookingNo:   "V20260301120000123456",
		VillaID:     1,
		GuestUserID: 10,
		HostUserID:  20,
		StartDate:   "2026-03-01",
		EndDate:     "2026-03-04",
		Status:      models.BookingStatusPending,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []Event
	err    error
}

func (p *recordingPublisher) PublishWithContext(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload.(Event))
	return p.err
}

type failingSink struct{}

func (failingSink) Name() string                         { return "broken" }
func (failingSink) Publish(context.Context, Event) error { return stderrors.New("down") }

func TestEventsFor(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	events := EventsFor(EventCreated, testBooking(), at)
	require.Len(t, events, 2)
	assert.Equal(t, int64(10), events[0].RecipientID)
	assert.Equal(t, RoleGuest, events[0].Role)
	assert.Equal(t, int64(20), events[1].RecipientID)
	assert.Equal(t, RoleHost, events[1].Role)
	assert.Equal(t, at, events[1].OccurredAt)

	t.Run("房东自订只通知一次", func(t *testing.T) {
		b := testBooking()
		b.HostUserID = b.GuestUserID
		assert.Len(t, EventsFor(EventConfirmed, b, at), 1)
	})
}

func TestMQTTSink(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewMQTTSink(pub, "villa-booking/")

	for _, e := range EventsFor(EventConfirmed, testBooking(), time.Now()) {
		require.NoError(t, sink.Publish(context.Background(), e))
	}

	assert.Equal(t, []string{"villa-booking/users/10/bookings", "villa-booking/users/20/bookings"}, pub.topics)
	assert.Equal(t, int64(5), pub.events[0].Booking.ID)
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sink := NewRedisSink(cache.NewStore(client), "booking:notify:")

	sub := client.Subscribe(ctx, "booking:notify:user:10")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	event := EventsFor(EventCreated, testBooking(), time.Now())[0]
	require.NoError(t, sink.Publish(ctx, event))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, EventCreated, got.Type)
		assert.Equal(t, "V20260301120000123456", got.Booking.BookingNo)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到推送")
	}
}

func TestStoreSink(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))

	repo := repository.NewNotificationRepository(db)
	sink := NewStoreSink(repo)
	ctx := context.Background()

	for _, e := range EventsFor(EventCreated, testBooking(), time.Now()) {
		require.NoError(t, sink.Publish(ctx, e))
	}

	list, total, err := repo.ListForUser(ctx, 20, repository.NotificationFilter{Type: models.NotificationTypeBooking}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, "收到新预订", list[0].Title)
	assert.Equal(t, EventCreated, list[0].Event)
	assert.Equal(t, int64(5), *list[0].BookingID)
}

func TestDescribe(t *testing.T) {
	b := testBooking()
	tests := []struct {
		event string
		role  string
		title string
	}{
		{EventCreated, RoleGuest, "预订已提交"},
		{EventCreated, RoleHost, "收到新预订"},
		{EventConfirmed, RoleGuest, "预订已确认"},
		{EventCancelled, RoleHost, "预订已取消"},
		{EventExpired, RoleGuest, "预订已过期"},
		{"booking.other", RoleGuest, "预订更新"},
	}
	for _, tt := range tests {
		t.Run(tt.event+"/"+tt.role, func(t *testing.T) {
			title, content := Describe(Event{Type: tt.event, Role: tt.role, Booking: b})
			assert.Equal(t, tt.title, title)
			assert.Contains(t, content, b.BookingNo)
			assert.Contains(t, content, "2026-03-01 至 2026-03-04")
		})
	}
}

func TestMultiSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("", reg)
	pub := &recordingPublisher{}

	sink := NewMultiSink(m, failingSink{}, NewMQTTSink(pub, ""))
	event := EventsFor(EventCancelled, testBooking(), time.Now())[0]

	err := sink.Publish(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	// 失败的出口不影响后续出口
	assert.Len(t, pub.topics, 1)

	assert.Equal(t, 1.0, notificationCount(t, reg, "broken", "failed"))
	assert.Equal(t, 1.0, notificationCount(t, reg, "mqtt", "ok"))
}

type phoneBook map[int64]string

func (p phoneBook) PhoneOf(_ context.Context, userID int64) (string, error) {
	return p[userID], nil
}

func TestSMSSink(t *testing.T) {
	sender := sms.NewMockSender()
	sink := NewSMSSink(sender, phoneBook{20: "13900139000"}, map[string]string{
		EventCreated: "SMS_BOOKING_CREATED",
	})
	ctx := context.Background()

	for _, e := range EventsFor(EventCreated, testBooking(), time.Now()) {
		require.NoError(t, sink.Publish(ctx, e))
	}
	// 房客未绑定手机
	msgs := sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "13900139000", msgs[0].Phone)
	assert.Equal(t, "SMS_BOOKING_CREATED", msgs[0].TemplateCode)
	assert.Equal(t, "V20260301120000123456", msgs[0].Params["booking_no"])

	t.Run("未配置模板的事件跳过", func(t *testing.T) {
		for _, e := range EventsFor(EventConfirmed, testBooking(), time.Now()) {
			require.NoError(t, sink.Publish(ctx, e))
		}
		assert.Len(t, sender.Messages(), 1)
	})

	t.Run("发送失败", func(t *testing.T) {
		sender.FailWith(stderrors.New("quota"))
		e := EventsFor(EventCreated, testBooking(), time.Now())[1]
		err := sink.Publish(ctx, e)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "139****9000")
		assert.NotContains(t, err.Error(), "13900139000")
	})
}

func TestBuild(t *testing.T) {
	t.Run("没有可用出口", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		sink := Build([]string{"mqtt", "unknown"}, Deps{}, nil, zap.New(core))
		assert.Equal(t, "nop", sink.Name())
		assert.NoError(t, sink.Publish(context.Background(), Event{}))
		assert.Equal(t, 2, logs.FilterMessage("Notification sink skipped").Len())
	})

	t.Run("按依赖组装", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		sink := Build([]string{"mqtt", "redis", "store", "sms"}, Deps{
			MQTT:   &recordingPublisher{},
			Redis:  cache.NewStore(client),
			SMS:    sms.NewMockSender(),
			Phones: phoneBook{},
		}, nil, nil)

		multi, ok := sink.(*MultiSink)
		require.True(t, ok)
		names := make([]string, 0, len(multi.Sinks()))
		for _, s := range multi.Sinks() {
			names = append(names, s.Name())
		}
		assert.Equal(t, []string{"mqtt", "redis", "sms"}, names)
	})
}

func notificationCount(t *testing.T, reg *prometheus.Registry, sink, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "villa_booking_notifications_published_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["sink"] == sink && labels["result"] == result {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
