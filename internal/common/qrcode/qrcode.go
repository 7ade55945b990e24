// Package qrcode 生成入住二维码，前台扫码后按预订号核验
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/skip2/go-qrcode"
)

const (
	defaultSize   = 256
	dataURLPrefix = "data:image/png;base64,"
)

var ErrEmptyPass = errors.New("check-in pass has no booking number")

// Pass 入住凭证
type Pass struct {
	BookingNo string
	VillaID   int64
	StartDate string
	EndDate   string
}

// Content 二维码承载的内容，只放核验所需的字段
func (p Pass) Content() string {
	q := url.Values{}
	q.Set("no", p.BookingNo)
	q.Set("villa", strconv.FormatInt(p.VillaID, 10))
	q.Set("from", p.StartDate)
	q.Set("to", p.EndDate)
	return "villa-booking://checkin?" + q.Encode()
}

// Renderer 把凭证渲染为 PNG
// 入住码常被截图转发，纠错级别固定为 High
type Renderer struct {
	size int
}

// NewRenderer size 为边长像素，非正数时取 256
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = defaultSize
	}
	return &Renderer{size: size}
}

func (r *Renderer) PNG(p Pass) ([]byte, error) {
	if p.BookingNo == "" {
		return nil, ErrEmptyPass
	}
	data, err := qrcode.Encode(p.Content(), qrcode.High, r.size)
	if err != nil {
		return nil, fmt.Errorf("encode check-in qrcode: %w", err)
	}
	return data, nil
}

// DataURL 供前端直接放进 img 标签
func (r *Renderer) DataURL(p Pass) (string, error) {
	data, err := r.PNG(p)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data), nil
}
