// Package qr is the image boundary of the attendance flow: payload string in,
// scannable PNG out. Decoding happens in the client camera; the server only
// ever sees the decoded payload string.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder renders payload strings into QR PNG images.
type Encoder interface {
	EncodePNG(payload string, size int) ([]byte, error)
}

// PNGEncoder is the default Encoder backed by go-qrcode.
type PNGEncoder struct{}

// NewPNGEncoder constructs the default encoder.
func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{}
}

// EncodePNG renders the payload into a size x size PNG.
func (e *PNGEncoder) EncodePNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr: empty payload")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode payload: %w", err)
	}
	return png, nil
}
