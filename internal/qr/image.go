package qr

import (
	qrcode "github.com/skip2/go-qrcode"

	"github.com/rezonia/fatoora/internal/model"
)

// DefaultImageSize is the rendered QR side length in pixels
const DefaultImageSize = 256

// RenderPNG renders the Base64 TLV payload as a QR code PNG for the UI
// and receipt collaborators
func RenderPNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, model.NewEncodingError(0, "failed to render QR image: "+err.Error())
	}
	return png, nil
}
