package models

import (
	"time"
)

// Villa 房源模型
type Villa struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	HostUserID         int64     `gorm:"index;not null" json:"host_user_id"`
	Title              string    `gorm:"type:varchar(100);not null" json:"title"`
	City               string    `gorm:"type:varchar(50);not null;default:''" json:"city"`
	Address            string    `gorm:"type:varchar(255);not null;default:''" json:"address"`
	Description        *string   `gorm:"type:text" json:"description,omitempty"`
	PricePerNight      float64   `gorm:"type:decimal(10,2);not null" json:"price_per_night"`
	CleaningFee        float64   `gorm:"type:decimal(10,2);not null;default:0" json:"cleaning_fee"`
	ServiceFee         float64   `gorm:"type:decimal(10,2);not null;default:0" json:"service_fee"`
	MinimumStayNights  int       `gorm:"not null;default:1" json:"minimum_stay_nights"`
	Occupancy          int       `gorm:"not null;default:2" json:"occupancy"`
	CancellationPolicy string    `gorm:"type:varchar(20);not null;default:'flexible'" json:"cancellation_policy"`
	Status             string    `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Host *User `gorm:"foreignKey:HostUserID" json:"host,omitempty"`
}

// TableName 表名
func (Villa) TableName() string {
	return "villas"
}

// VillaStatus 房源状态
const (
	VillaStatusDraft       = "draft"       // 草稿
	VillaStatusPublished   = "published"   // 已上架
	VillaStatusUnpublished = "unpublished" // 已下架
)

// CancellationPolicy 取消政策
const (
	CancellationPolicyFlexible = "flexible" // 宽松
	CancellationPolicyModerate = "moderate" // 适中
	CancellationPolicyStrict   = "strict"   // 严格
)

// IsPublished 是否已上架
func (v *Villa) IsPublished() bool {
	return v.Status == VillaStatusPublished
}

// CalendarBlock 房东日历屏蔽
// 每个房源每个日期至多一行，没有记录表示默认可订
type CalendarBlock struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VillaID     int64     `gorm:"not null;uniqueIndex:uk_calendar_villa_date,priority:1" json:"villa_id"`
	Date        string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_calendar_villa_date,priority:2" json:"date"`
	IsAvailable bool      `gorm:"not null" json:"is_available"`
	IsBlocked   bool      `gorm:"not null;default:false" json:"is_blocked"`
	Note        *string   `gorm:"type:varchar(255)" json:"note,omitempty"`
	UpdatedBy   int64     `gorm:"not null;default:0" json:"updated_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CalendarBlock) TableName() string {
	return "calendar_blocks"
}

// Unavailable 该日期是否被房东关闭
func (b *CalendarBlock) Unavailable() bool {
	return b.IsBlocked || !b.IsAvailable
}

// Booking 预订模型
// StartDate 含当天，EndDate 不含当天，均为 YYYY-MM-DD
type Booking struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingNo          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"booking_no"`
	VillaID            int64      `gorm:"not null;index:idx_booking_villa_range,priority:1" json:"villa_id"`
	GuestUserID        int64      `gorm:"index;not null" json:"guest_user_id"`
	HostUserID         int64      `gorm:"index;not null" json:"host_user_id"`
	StartDate          string     `gorm:"type:varchar(10);not null;index:idx_booking_villa_range,priority:2" json:"start_date"`
	EndDate            string     `gorm:"type:varchar(10);not null;index:idx_booking_villa_range,priority:3" json:"end_date"`
	Adults             int        `gorm:"not null;default:1" json:"adults"`
	Children           int        `gorm:"not null;default:0" json:"children"`
	Infants            int        `gorm:"not null;default:0" json:"infants"`
	Nights             int        `gorm:"not null" json:"nights"`
	PricePerNight      float64    `gorm:"type:decimal(10,2);not null" json:"price_per_night"`
	Subtotal           float64    `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	CleaningFee        float64    `gorm:"type:decimal(10,2);not null;default:0" json:"cleaning_fee"`
	ServiceFee         float64    `gorm:"type:decimal(10,2);not null;default:0" json:"service_fee"`
	TotalPrice         float64    `gorm:"type:decimal(10,2);not null" json:"total_price"`
	Status             string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus      string     `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	CancellationReason *string    `gorm:"type:varchar(255)" json:"cancellation_reason,omitempty"`
	CancelledBy        *int64     `json:"cancelled_by,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Villa *Villa `gorm:"foreignKey:VillaID" json:"villa,omitempty"`
}

// TableName 表名
func (Booking) TableName() string {
	return "bookings"
}

// BookingStatus 预订状态
const (
	BookingStatusPending   = "pending"   // 待确认
	BookingStatusConfirmed = "confirmed" // 已确认
	BookingStatusCancelled = "cancelled" // 已取消
)

// PaymentStatus 支付状态
const (
	PaymentStatusPending = "pending" // 待支付
	PaymentStatusPaid    = "paid"    // 已支付
)

// ActiveBookingStatuses 占用日期的预订状态
var ActiveBookingStatuses = []string{
	BookingStatusPending,
	BookingStatusConfirmed,
}

// IsActive 是否占用日期
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}
