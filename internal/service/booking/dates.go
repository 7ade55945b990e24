// Package booking 提供房源可订日历与预订事务
package booking

import (
	"sort"
	"time"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
)

// DateLayout 日期格式，所有日期均按 UTC 零点解析
const DateLayout = "2006-01-02"

// ParseDate 严格解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Stay 半开区间 [Start, End)
type Stay struct {
	Start time.Time
	End   time.Time
}

// ParseStay 解析入住区间，格式错误或 start >= end 时返回 ErrInvalidRange
func ParseStay(start, end string) (Stay, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Stay{}, errors.ErrInvalidRange.WithMessage("入住日期格式错误")
	}
	e, err := ParseDate(end)
	if err != nil {
		return Stay{}, errors.ErrInvalidRange.WithMessage("离店日期格式错误")
	}
	if !s.Before(e) {
		return Stay{}, errors.ErrInvalidRange.WithMessage("离店日期必须晚于入住日期")
	}
	return Stay{Start: s, End: e}, nil
}

// Nights 晚数
func (s Stay) Nights() int {
	return Nights(s.Start, s.End)
}

// StartDate 入住日期
func (s Stay) StartDate() string { return s.Start.Format(DateLayout) }

// EndDate 离店日期
func (s Stay) EndDate() string { return s.End.Format(DateLayout) }

// Nights 返回 [start, end) 的晚数
func Nights(start, end time.Time) int {
	return int((end.Unix() - start.Unix()) / 86400)
}

// EachNight 列出 [start, end) 内的每个日期
func EachNight(start, end time.Time) []string {
	if !start.Before(end) {
		return nil
	}
	dates := make([]string, 0, Nights(start, end))
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

// NormalizeDates 校验日期列表，去重后升序返回
func NormalizeDates(dates []string) ([]string, error) {
	if len(dates) == 0 {
		return nil, errors.ErrInvalidParams.WithMessage("请选择日期")
	}

	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, err := ParseDate(d); err != nil {
			return nil, errors.ErrCalendarDateFormat.WithMessage("日期格式错误: " + d)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// clamp 把 [start, end) 截断到窗口内
func clamp(start, end, windowStart, windowEnd time.Time) (time.Time, time.Time) {
	if start.Before(windowStart) {
		start = windowStart
	}
	if end.After(windowEnd) {
		end = windowEnd
	}
	return start, end
}
