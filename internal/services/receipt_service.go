package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schoolfees_app/internal/models"
)

// ReceiptService issues human-readable receipt numbers of the form
// RCP<school><YYYYMMDD><NNNN>, strictly increasing per (school, day).
// Allocation goes through a dedicated counter row bumped under an exclusive
// row lock: two concurrent payments can never observe the same value.
type ReceiptService struct {
	db *gorm.DB
}

// NewReceiptService creates a new receipt sequencer
func NewReceiptService(db *gorm.DB) *ReceiptService {
	return &ReceiptService{db: db}
}

// Next allocates the next receipt number in its own transaction
func (s *ReceiptService) Next(ctx context.Context, schoolID uint, date time.Time) (string, error) {
	var receiptNo string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		receiptNo, txErr = s.NextInTx(tx, schoolID, date)
		return txErr
	})
	if err != nil {
		return "", err
	}
	return receiptNo, nil
}

// NextInTx allocates the next receipt number inside the caller's transaction,
// so a rolled-back payment also rolls back the counter bump where the store
// supports it. Gaps from aborted transactions are acceptable; duplicates are not.
func (s *ReceiptService) NextInTx(tx *gorm.DB, schoolID uint, date time.Time) (string, error) {
	dayKey := date.Format("20060102")

	// Make sure the counter row exists, then take an exclusive lock on it.
	seed := models.ReceiptCounter{SchoolID: schoolID, DayKey: dayKey, LastNumber: 0}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "school_id"}, {Name: "day_key"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return "", &StorageError{Op: "receipt counter seed", Err: err}
	}

	var counter models.ReceiptCounter
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("school_id = ? AND day_key = ?", schoolID, dayKey).
		First(&counter).Error; err != nil {
		return "", &StorageError{Op: "receipt counter lock", Err: err}
	}

	counter.LastNumber++
	if err := tx.Model(&counter).Update("last_number", counter.LastNumber).Error; err != nil {
		return "", &StorageError{Op: "receipt counter bump", Err: err}
	}

	return fmt.Sprintf("RCP%d%s%04d", schoolID, dayKey, counter.LastNumber), nil
}
