package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment records a fee payment made against a schedule for a student.
// Amount is fixed at creation; a refund transitions Status to refunded and
// produces a compensating balance adjustment, it never touches Amount.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SchoolID      uint   `gorm:"index;uniqueIndex:idx_payments_school_receipt" json:"school_id"`
	StudentID     uint   `gorm:"index" json:"student_id"`
	FeeScheduleID uint   `gorm:"index" json:"fee_schedule_id"`
	ReceiptNo     string `gorm:"type:varchar(50);uniqueIndex:idx_payments_school_receipt" json:"receipt_no"`

	Amount      decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	PaymentDate time.Time       `gorm:"index" json:"payment_date"`
	Mode        PaymentMode     `gorm:"type:varchar(20)" json:"mode"`
	Status      PaymentStatus   `gorm:"type:varchar(20);default:'completed';index" json:"status"`

	TransactionID *string `gorm:"type:varchar(100)" json:"transaction_id,omitempty"` // online payments
	ChequeNo      *string `gorm:"type:varchar(50)" json:"cheque_no,omitempty"`       // cheque payments
	BankName      *string `gorm:"type:varchar(100)" json:"bank_name,omitempty"`      // cheque/bank transfer
	Remarks       *string `gorm:"type:text" json:"remarks,omitempty"`

	CollectedBy string `gorm:"type:varchar(64);index" json:"collected_by"` // opaque actor id, audit only

	// Relationships
	Student     Student          `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	FeeSchedule FeeSchedule      `gorm:"foreignKey:FeeScheduleID" json:"fee_schedule,omitempty"`
	History     []PaymentHistory `gorm:"foreignKey:PaymentID" json:"history,omitempty"`
}

// IsRefundable reports whether the payment can still be refunded
func (p Payment) IsRefundable() bool {
	return p.Status == PaymentStatusCompleted
}
