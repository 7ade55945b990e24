package booking

import (
	"github.com/dumeirei/villa-booking-backend/internal/common/utils"
	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// Quote 报价，内部以分计算，对外输出元
type Quote struct {
	Nights        int     `json:"nights"`
	PricePerNight float64 `json:"price_per_night"`
	Subtotal      float64 `json:"subtotal"`
	CleaningFee   float64 `json:"cleaning_fee"`
	ServiceFee    float64 `json:"service_fee"`
	TotalPrice    float64 `json:"total_price"`

	totalCents int64
}

// QuoteFor 按房源当前价格计算 nights 晚的报价
// subtotal = nights * price_per_night，total = subtotal + cleaning_fee + service_fee
func QuoteFor(villa *models.Villa, nights int) *Quote {
	price := utils.YuanToCents(villa.PricePerNight)
	cleaning := utils.YuanToCents(villa.CleaningFee)
	service := utils.YuanToCents(villa.ServiceFee)

	subtotal := price * int64(nights)
	total := subtotal + cleaning + service

	return &Quote{
		Nights:        nights,
		PricePerNight: utils.CentsToYuan(price),
		Subtotal:      utils.CentsToYuan(subtotal),
		CleaningFee:   utils.CentsToYuan(cleaning),
		ServiceFee:    utils.CentsToYuan(service),
		TotalPrice:    utils.CentsToYuan(total),
		totalCents:    total,
	}
}

// MatchesYuan 客户端提交的总价是否与报价一致
func (q *Quote) MatchesYuan(total float64) bool {
	return utils.YuanToCents(total) == q.totalCents
}

// Apply 把报价写入预订
func (q *Quote) Apply(b *models.Booking) {
	b.Nights = q.Nights
	b.PricePerNight = q.PricePerNight
	b.Subtotal = q.Subtotal
	b.CleaningFee = q.CleaningFee
	b.ServiceFee = q.ServiceFee
	b.TotalPrice = q.TotalPrice
}
