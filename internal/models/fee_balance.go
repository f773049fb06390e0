package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeeBalance is the derived, cached payment status of one student against one
// schedule. PaidAmount must always equal the sum of completed, non-refunded
// payments for the pair; everything else here derives from it.
type FeeBalance struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SchoolID      uint `gorm:"index" json:"school_id"`
	StudentID     uint `gorm:"index;uniqueIndex:idx_fee_balances_student_schedule" json:"student_id"`
	FeeScheduleID uint `gorm:"index;uniqueIndex:idx_fee_balances_student_schedule" json:"fee_schedule_id"`

	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(10,2)" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(10,2)" json:"remaining_amount"`

	PaymentPercentage float64 `json:"payment_percentage"`
	IsFullyPaid       bool    `gorm:"default:false" json:"is_fully_paid"`
	IsOverdue         bool    `gorm:"default:false;index" json:"is_overdue"`

	NextDueDate     *time.Time `gorm:"index" json:"next_due_date,omitempty"`
	LastPaymentDate *time.Time `json:"last_payment_date,omitempty"`

	// Relationships
	Student     Student     `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	FeeSchedule FeeSchedule `gorm:"foreignKey:FeeScheduleID" json:"fee_schedule,omitempty"`
}

// Recalculate re-derives every computed field from TotalAmount and PaidAmount.
// RemainingAmount clamps at zero so overpayment never produces a negative
// balance. The overdue flag is evaluated against the supplied "today".
func (b *FeeBalance) Recalculate(today time.Time) {
	if b.TotalAmount.IsPositive() {
		b.RemainingAmount = b.TotalAmount.Sub(b.PaidAmount)
		if b.RemainingAmount.IsNegative() {
			b.RemainingAmount = decimal.Zero
		}
		pct, _ := b.PaidAmount.Div(b.TotalAmount).Mul(decimal.NewFromInt(100)).Float64()
		b.PaymentPercentage = pct
		b.IsFullyPaid = !b.RemainingAmount.IsPositive()
	} else {
		b.RemainingAmount = decimal.Zero
		b.PaymentPercentage = 0
		b.IsFullyPaid = true
	}

	if b.NextDueDate != nil && b.NextDueDate.Before(today) && !b.IsFullyPaid {
		b.IsOverdue = true
	} else {
		b.IsOverdue = false
	}
}

// DaysOverdue is the number of whole days past the next due date, zero when the
// balance is not overdue. Both sides compare as calendar dates; the clock
// component of a due date does not count as a part day.
func (b FeeBalance) DaysOverdue(today time.Time) int {
	if !b.IsOverdue || b.NextDueDate == nil {
		return 0
	}
	// rounding keeps the count stable when a DST shift makes a day 23 or 25 hours
	days := int(math.Round(calendarDate(today).Sub(calendarDate(*b.NextDueDate)).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
