package utils

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateBookingNo(t *testing.T) {
	at := time.Date(2026, 3, 1, 14, 5, 9, 0, time.Local)

	for _, prefix := range []string{"V", "VB", ""} {
		t.Run("前缀"+prefix, func(t *testing.T) {
			no := GenerateBookingNo(prefix, at)
			assert.Regexp(t, `^`+prefix+`20260301140509\d{6}$`, no)
		})
	}

	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		seen[GenerateBookingNo("V", at)] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "同一秒内随机部分不同")
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestGenerateBookingNo_RandomSource(t *testing.T) {
	old := randSource
	t.Cleanup(func() { randSource = old })
	at := time.Date(2026, 3, 1, 14, 5, 9, 123456789, time.Local)

	t.Run("随机源失败时使用纳秒", func(t *testing.T) {
		randSource = brokenReader{}
		assert.Equal(t, "V20260301140509123456", GenerateBookingNo("V", at))
	})

	t.Run("丢弃偏置字节", func(t *testing.T) {
		randSource = bytes.NewReader([]byte{255, 251, 13, 7, 250, 99, 42, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
		// 13 7 99 42 0 1
		assert.Equal(t, "V20260301140509379201", GenerateBookingNo("V", at))
	})
}

func TestMoney(t *testing.T) {
	tests := []struct {
		yuan  float64
		cents int64
	}{
		{800, 80000},
		{0.1, 10},
		{0.29, 29},
		{19.99, 1999},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.cents, YuanToCents(tt.yuan), "yuan=%v", tt.yuan)
	}

	assert.Equal(t, 3300.0, CentsToYuan(330000))
	assert.Equal(t, 0.01, CentsToYuan(1))
	assert.Equal(t, 12.35, RoundYuan(12.349999))
	// 三晚 0.1 元累加会有浮点误差，按分计算后精确
	assert.Equal(t, 0.3, CentsToYuan(3*YuanToCents(0.1)))
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name             string
		in               Pagination
		page, size, skip int
	}{
		{"缺省", Pagination{}, 1, 10, 0},
		{"第三页", Pagination{Page: 3, PageSize: 20}, 3, 20, 40},
		{"超上限", Pagination{Page: 2, PageSize: 500}, 2, 100, 100},
		{"负数", Pagination{Page: -1, PageSize: -5}, 1, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Normalize()
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.size, p.GetLimit())
			assert.Equal(t, tt.skip, p.GetOffset())
		})
	}
}

func BenchmarkGenerateBookingNo(b *testing.B) {
	now := time.Now()
	for i := 0; i < b.N; i++ {
		_ = GenerateBookingNo("V", now)
	}
}
