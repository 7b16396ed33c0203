package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentTypeDeposit PaymentType = "deposit"
	PaymentTypeFinal   PaymentType = "final"
	PaymentTypeExtra   PaymentType = "extra"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "efectivo"
	PaymentMethodCard     PaymentMethod = "tarjeta"
	PaymentMethodTransfer PaymentMethod = "transferencia"
	PaymentMethodQR       PaymentMethod = "qr"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pendiente"
	PaymentStatusCompleted PaymentStatus = "completado"
	PaymentStatusFailed    PaymentStatus = "fallido"
)

type Payment struct {
	ID             string          `json:"id"`
	ReservationID  string          `json:"reservation_id"`
	Amount         decimal.Decimal `json:"amount"`
	Type           PaymentType     `json:"type"`
	Method         PaymentMethod   `json:"method,omitempty"`
	Status         PaymentStatus   `json:"status"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	QRReference    string          `json:"qr_reference,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func ParsePaymentType(s string) (PaymentType, bool) {
	switch PaymentType(s) {
	case PaymentTypeDeposit, PaymentTypeFinal, PaymentTypeExtra:
		return PaymentType(s), true
	}
	return "", false
}

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodQR:
		return PaymentMethod(s), true
	}
	return "", false
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return PaymentStatus(s), true
	}
	return "", false
}
