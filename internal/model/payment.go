package model

import (
	"time"
)

const (
	ProviderIntaSend = "intasend"
	ProviderStripe   = "stripe"
	ProviderPolar    = "polar"
)

// PaymentStatus is a provider status normalized to the values the
// entitlement processor acts on.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusUnknown PaymentStatus = "unknown"
)

// PaymentEvent is a verified, provider-neutral webhook notification.
type PaymentEvent struct {
	Provider  string
	EventID   string
	InvoiceID string
	Status    PaymentStatus
	RawStatus string
	UserID    string
	Payload   []byte
}

func (e *PaymentEvent) IsPaid() bool {
	return e.Status == PaymentStatusPaid
}

type ProcessedPayment struct {
	ID        string    `db:"id"`
	Provider  string    `db:"provider"`
	InvoiceID string    `db:"invoice_id"`
	UserID    string    `db:"user_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}
