// Package utils 提供预订号、金额换算与分页等通用工具
package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

const (
	bookingNoLayout = "20060102150405"
	bookingNoDigits = 6
)

// randSource 预订号随机部分的来源
var randSource io.Reader = rand.Reader

// GenerateBookingNo 生成预订号：前缀 + 本地时间到秒 + 6 位随机数
// 同一秒内冲突由唯一索引兜底，调用方重试一次
func GenerateBookingNo(prefix string, now time.Time) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(bookingNoLayout) + bookingNoDigits)
	b.WriteString(prefix)
	b.WriteString(now.Format(bookingNoLayout))
	b.WriteString(randomDigits(now))
	return b.String()
}

// randomDigits 随机源不可用时退回到纳秒部分
func randomDigits(now time.Time) string {
	digits := make([]byte, 0, bookingNoDigits)
	buf := make([]byte, bookingNoDigits*2)
	for len(digits) < bookingNoDigits {
		if _, err := io.ReadFull(randSource, buf); err != nil {
			return fmt.Sprintf("%0*d", bookingNoDigits, now.Nanosecond()/1000%1000000)
		}
		for _, c := range buf {
			// 丢弃 250 以上的字节，保证各数字等概率
			if c >= 250 || len(digits) == bookingNoDigits {
				continue
			}
			digits = append(digits, '0'+c%10)
		}
	}
	return string(digits)
}

// YuanToCents 元转分，四舍五入到分
func YuanToCents(yuan float64) int64 {
	return int64(math.Round(yuan * 100))
}

// CentsToYuan 分转元
func CentsToYuan(cents int64) float64 {
	return float64(cents) / 100
}

// RoundYuan 金额保留到分
func RoundYuan(yuan float64) float64 {
	return CentsToYuan(YuanToCents(yuan))
}

// Pagination 分页参数
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Normalize page 从 1 开始，page_size 限制在 [1, 100]，缺省 10
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = defaultPageSize
	case p.PageSize > maxPageSize:
		p.PageSize = maxPageSize
	}
}

func (p *Pagination) GetOffset() int { return (p.Page - 1) * p.PageSize }
func (p *Pagination) GetLimit() int  { return p.PageSize }
