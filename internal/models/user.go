// Package models 定义数据模型
package models

import (
	"time"
)

// User 用户模型
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Phone     *string   `gorm:"type:varchar(20);uniqueIndex" json:"phone,omitempty"`
	Email     *string   `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	Nickname  string    `gorm:"type:varchar(50);not null;default:''" json:"nickname"`
	Avatar    *string   `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	Role      string    `gorm:"type:varchar(20);not null;default:'guest'" json:"role"`
	Status    int8      `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// UserStatus 用户状态
const (
	UserStatusDisabled = 0 // 禁用
	UserStatusActive   = 1 // 正常
)

// UserRole 用户角色
const (
	UserRoleGuest = "guest" // 房客
	UserRoleHost  = "host"  // 房东
	UserRoleAdmin = "admin" // 管理员
)

// Notification 通知消息
type Notification struct {
	ID        int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID    *int64     `gorm:"index;column:user_id" json:"user_id,omitempty"`
	Type      string     `gorm:"type:varchar(20);not null;column:type" json:"type"`
	Event     string     `gorm:"type:varchar(40);not null;default:'';column:event" json:"event"`
	Title     string     `gorm:"type:varchar(100);not null;column:title" json:"title"`
	Content   string     `gorm:"type:text;not null;column:content" json:"content"`
	BookingID *int64     `gorm:"index;column:booking_id" json:"booking_id,omitempty"`
	IsRead    bool       `gorm:"not null;default:false;column:is_read" json:"is_read"`
	ReadAt    *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime;column:created_at" json:"created_at"`
}

// TableName 表名
func (Notification) TableName() string {
	return "notifications"
}

// NotificationType 通知类型
const (
	NotificationTypeSystem  = "system"  // 系统通知
	NotificationTypeBooking = "booking" // 预订通知
)

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Villa{},
		&CalendarBlock{},
		&Booking{},
		&Notification{},
	}
}
