package models

import "time"

// ReceiptCounter is the allocation state behind receipt numbering: one row per
// (school, day), bumped under an exclusive row lock. Deriving the next number
// by scanning existing receipts races under concurrent payment submission, so
// allocation always goes through this counter instead.
type ReceiptCounter struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SchoolID   uint   `gorm:"uniqueIndex:idx_receipt_counters_school_day" json:"school_id"`
	DayKey     string `gorm:"type:varchar(8);uniqueIndex:idx_receipt_counters_school_day" json:"day_key"` // YYYYMMDD
	LastNumber int    `json:"last_number"`
}
