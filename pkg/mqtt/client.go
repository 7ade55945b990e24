// Package mqtt 提供 MQTT 客户端封装
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config MQTT 配置
type Config struct {
	Broker         string // tcp://host:port
	ClientIDPrefix string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
	QoS            byte
	Retained       bool
}

// Client MQTT 客户端，只负责发布
type Client struct {
	config *Config
	client mqtt.Client
	log    *zap.Logger
}

// NewClient 创建 MQTT 客户端
func NewClient(config *Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		config: config,
		log:    log.Named("mqtt"),
	}
}

// ClientOptions 生成 paho 连接参数，客户端 ID 追加随机后缀避免多实例互踢
func (c *Client) ClientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientIDPrefix + uuid.NewString()[:8])
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(c.config.KeepAlive)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetAutoReconnect(c.config.AutoReconnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warn("Connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.log.Info("Connected to broker", zap.String("broker", c.config.Broker))
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.log.Info("Reconnecting to broker")
	})
	return opts
}

// Connect 连接 MQTT Broker
func (c *Client) Connect() error {
	c.client = mqtt.NewClient(c.ClientOptions())

	token := c.client.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("mqtt connect timeout: %s", c.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect error: %w", err)
	}
	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.log.Info("Disconnected from broker")
	}
}

// IsConnected 检查是否已连接
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Encode 把负载编码为字节，[]byte 与 string 原样发送，其余按 JSON 编码
func Encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("mqtt marshal payload error: %w", err)
		}
		return data, nil
	}
}

// PublishWithContext 发布消息，ctx 结束时放弃等待确认
func (c *Client) PublishWithContext(ctx context.Context, topic string, payload interface{}) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	data, err := Encode(payload)
	if err != nil {
		return err
	}

	token := c.client.Publish(topic, c.config.QoS, c.config.Retained, data)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("mqtt publish error: %w", token.Error())
		}
		return nil
	}
}
