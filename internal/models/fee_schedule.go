package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"
	"gorm.io/gorm"
)

// FeeSchedule defines how much a class owes for an academic year.
// The breakdown components are informational and do not have to sum to TotalAmount.
type FeeSchedule struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// The unique index only covers active rows: a retired schedule may be
	// replaced by a corrected one for the same triple.
	SchoolID     uint   `gorm:"index;uniqueIndex:idx_fee_schedules_school_class_year,where:is_active" json:"school_id"`
	ClassID      uint   `gorm:"index;uniqueIndex:idx_fee_schedules_school_class_year,where:is_active" json:"class_id"`
	AcademicYear string `gorm:"type:varchar(20);uniqueIndex:idx_fee_schedules_school_class_year,where:is_active" json:"academic_year"` // e.g., "2024-25"

	TotalAmount    decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	TuitionFee     decimal.Decimal `gorm:"type:decimal(10,2)" json:"tuition_fee"`
	AdmissionFee   decimal.Decimal `gorm:"type:decimal(10,2)" json:"admission_fee"`
	DevelopmentFee decimal.Decimal `gorm:"type:decimal(10,2)" json:"development_fee"`
	TransportFee   decimal.Decimal `gorm:"type:decimal(10,2)" json:"transport_fee"`
	LibraryFee     decimal.Decimal `gorm:"type:decimal(10,2)" json:"library_fee"`
	LabFee         decimal.Decimal `gorm:"type:decimal(10,2)" json:"lab_fee"`
	SportsFee      decimal.Decimal `gorm:"type:decimal(10,2)" json:"sports_fee"`
	OtherFee       decimal.Decimal `gorm:"type:decimal(10,2)" json:"other_fee"`

	InstallmentCount int        `gorm:"default:1" json:"installment_count"`
	StartDate        time.Time  `json:"start_date"`
	DueDateRule      *string    `gorm:"type:text" json:"due_date_rule"` // RFC 5545 RRULE string
	IsActive         bool       `gorm:"default:true;index" json:"is_active"`

	// Relationships
	School   School       `gorm:"foreignKey:SchoolID" json:"school,omitempty"`
	Class    Class        `gorm:"foreignKey:ClassID" json:"class,omitempty"`
	Balances []FeeBalance `gorm:"foreignKey:FeeScheduleID" json:"balances,omitempty"`
}

// DueDates returns the installment due dates derived from the recurrence rule,
// capped at InstallmentCount occurrences. A schedule without a rule has a single
// due date at StartDate.
func (s FeeSchedule) DueDates() []time.Time {
	count := s.InstallmentCount
	if count < 1 {
		count = 1
	}

	if s.DueDateRule != nil && *s.DueDateRule != "" {
		rule, err := rrule.StrToRRule(*s.DueDateRule)
		if err == nil {
			rule.DTStart(s.StartDate)
			all := rule.All()
			if len(all) > count {
				all = all[:count]
			}
			if len(all) > 0 {
				return all
			}
		}
	}
	return []time.Time{s.StartDate}
}

// NextDueAfter returns the first due date strictly after t, or nil when the
// schedule has no remaining installments.
func (s FeeSchedule) NextDueAfter(t time.Time) *time.Time {
	for _, due := range s.DueDates() {
		if due.After(t) {
			d := due
			return &d
		}
	}
	return nil
}

// FirstDueDate is the earliest installment due date
func (s FeeSchedule) FirstDueDate() *time.Time {
	dates := s.DueDates()
	if len(dates) == 0 {
		return nil
	}
	d := dates[0]
	return &d
}
