package models

import "fmt"

// PaymentMode is the channel a payment came in through
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "cash"
	PaymentModeOnline       PaymentMode = "online"
	PaymentModeCheque       PaymentMode = "cheque"
	PaymentModeBankTransfer PaymentMode = "bank_transfer"
)

// ParsePaymentMode validates a mode coming from the boundary.
// Unrecognized values are rejected here instead of failing later in the store.
func ParsePaymentMode(s string) (PaymentMode, error) {
	switch PaymentMode(s) {
	case PaymentModeCash, PaymentModeOnline, PaymentModeCheque, PaymentModeBankTransfer:
		return PaymentMode(s), nil
	}
	return "", fmt.Errorf("unknown payment mode %q", s)
}

// PaymentStatus is the lifecycle state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// ParsePaymentStatus validates a status string from the boundary
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// History actions recorded against a payment
const (
	HistoryActionCreated  = "created"
	HistoryActionRefunded = "refunded"
)
