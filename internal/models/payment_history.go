package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentHistory is the append-only audit trail of a payment record.
// Rows are never mutated after insert.
type PaymentHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PaymentID uint `gorm:"index" json:"payment_id"`

	Action        string          `gorm:"type:varchar(50)" json:"action"` // created | refunded
	OldStatus     *string         `gorm:"type:varchar(20)" json:"old_status,omitempty"`
	NewStatus     string          `gorm:"type:varchar(20)" json:"new_status"`
	AmountChanged decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount_changed"` // negative for refunds
	Remarks       *string         `gorm:"type:text" json:"remarks,omitempty"`

	ChangedBy string `gorm:"type:varchar(64)" json:"changed_by"`

	// Relationships
	Payment Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}
