// Package payments builds the QR references customers scan to pay.
package payments

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const referencePrefix = "RENT-PAY"

// QREncoder turns a payment reference into a scannable image.
type QREncoder interface {
	Reference(reservationID, paymentID string, amount decimal.Decimal) string
	Encode(reference string) ([]byte, error)
}

type PNGEncoder struct {
	size int
}

func NewPNGEncoder(size int) *PNGEncoder {
	if size <= 0 {
		size = 256
	}
	return &PNGEncoder{size: size}
}

// Reference renders RENT-PAY:<reservation>:<amount>:<payment>.
func (e *PNGEncoder) Reference(reservationID, paymentID string, amount decimal.Decimal) string {
	return fmt.Sprintf("%s:%s:%s:%s", referencePrefix, reservationID, amount.StringFixed(2), paymentID)
}

func (e *PNGEncoder) Encode(reference string) ([]byte, error) {
	png, err := qrcode.Encode(reference, qrcode.Medium, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode payment qr: %w", err)
	}
	return png, nil
}
