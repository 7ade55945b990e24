// Package sms 短信发送，生产使用阿里云短信服务
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

// Sender 短信发送器接口
type Sender interface {
	Send(ctx context.Context, phone, templateCode string, params map[string]string) error
}

// Config 阿里云短信配置
type Config struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	Endpoint        string // 默认 dysmsapi.aliyuncs.com
}

// AliyunSender 阿里云短信发送器
type AliyunSender struct {
	client   *dysmsapi.Client
	signName string
}

// NewAliyunSender 创建阿里云短信发送器
func NewAliyunSender(cfg *Config) (*AliyunSender, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "dysmsapi.aliyuncs.com"
	}

	client, err := dysmsapi.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		Endpoint:        tea.String(endpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sms client: %w", err)
	}

	return &AliyunSender{client: client, signName: cfg.SignName}, nil
}

// BuildRequest 组装发送请求
func BuildRequest(signName, phone, templateCode string, params map[string]string) (*dysmsapi.SendSmsRequest, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sms params: %w", err)
	}
	return &dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(phone),
		SignName:      tea.String(signName),
		TemplateCode:  tea.String(templateCode),
		TemplateParam: tea.String(string(paramsJSON)),
	}, nil
}

// Send 发送模板短信
func (s *AliyunSender) Send(ctx context.Context, phone, templateCode string, params map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req, err := BuildRequest(s.signName, phone, templateCode, params)
	if err != nil {
		return err
	}

	resp, err := s.client.SendSms(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	if resp.Body == nil || tea.StringValue(resp.Body.Code) != "OK" {
		msg := "unknown error"
		if resp.Body != nil {
			msg = tea.StringValue(resp.Body.Code) + " - " + tea.StringValue(resp.Body.Message)
		}
		return fmt.Errorf("sms send failed: %s", msg)
	}
	return nil
}

// Message 已发送的短信
type Message struct {
	Phone        string
	TemplateCode string
	Params       map[string]string
}

// MockSender 记录短信但不发送，用于开发与测试
type MockSender struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{}
}

// FailWith 之后的发送都返回 err
func (s *MockSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Send 记录短信
func (s *MockSender) Send(_ context.Context, phone, templateCode string, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, Message{Phone: phone, TemplateCode: templateCode, Params: params})
	return nil
}

// Messages 返回已记录的短信
func (s *MockSender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// MaskPhone 手机号脱敏，用于日志
func MaskPhone(phone string) string {
	if len(phone) < 7 {
		return phone
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}
