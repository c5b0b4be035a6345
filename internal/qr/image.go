package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Image sizes in pixels.
const (
	DefaultSize = 300
	MinSize     = 128
	MaxSize     = 1024
)

// RenderPNG encodes the payload as a PNG QR code of size x size pixels.
func RenderPNG(p Payload, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("qr size %d outside [%d, %d]", size, MinSize, MaxSize)
	}
	content, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(content), qrcode.Medium, size)
}
