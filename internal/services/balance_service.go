package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schoolfees_app/internal/models"
)

// BalanceService maintains the derived FeeBalance rows. Every mutation here is
// meant to run inside the same transaction as the ledger write that triggered
// it: a payment record without its balance update (or the other way round)
// must never be observable.
type BalanceService struct {
	db *gorm.DB
}

// NewBalanceService creates a new balance tracker
func NewBalanceService(db *gorm.DB) *BalanceService {
	return &BalanceService{db: db}
}

// Ensure is the idempotent get-or-create of a balance row for the pair.
// Calling it twice returns the same row and never resets an existing
// paid amount.
func (s *BalanceService) Ensure(ctx context.Context, studentID, scheduleID uint) (*models.FeeBalance, error) {
	var balance *models.FeeBalance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var schedule models.FeeSchedule
		if err := tx.First(&schedule, scheduleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "fee schedule", ID: scheduleID}
			}
			return &StorageError{Op: "load schedule", Err: err}
		}
		var txErr error
		balance, txErr = s.EnsureInTx(tx, &schedule, studentID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// EnsureInTx is Ensure running inside the caller's transaction
func (s *BalanceService) EnsureInTx(tx *gorm.DB, schedule *models.FeeSchedule, studentID uint) (*models.FeeBalance, error) {
	fresh := models.FeeBalance{
		SchoolID:        schedule.SchoolID,
		StudentID:       studentID,
		FeeScheduleID:   schedule.ID,
		TotalAmount:     schedule.TotalAmount,
		PaidAmount:      decimal.Zero,
		RemainingAmount: schedule.TotalAmount,
		NextDueDate:     schedule.FirstDueDate(),
	}
	fresh.Recalculate(time.Now())

	var balance models.FeeBalance
	err := tx.Where("student_id = ? AND fee_schedule_id = ?", studentID, schedule.ID).
		Attrs(fresh).
		FirstOrCreate(&balance).Error
	if err != nil {
		return nil, &StorageError{Op: "ensure balance", Err: err}
	}
	return &balance, nil
}

// ApplyInTx adds a completed payment to the pair's balance. The row is locked
// for the duration of the transaction, so two concurrent payments for the same
// student serialize instead of losing an update.
func (s *BalanceService) ApplyInTx(tx *gorm.DB, schedule *models.FeeSchedule, payment *models.Payment) (*models.FeeBalance, error) {
	balance, err := s.lockBalance(tx, schedule, payment.StudentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	paymentDate := payment.PaymentDate

	balance.PaidAmount = balance.PaidAmount.Add(payment.Amount)
	balance.LastPaymentDate = &paymentDate
	balance.Recalculate(now)
	if balance.IsFullyPaid {
		balance.NextDueDate = nil
		balance.IsOverdue = false
	}

	if err := tx.Save(balance).Error; err != nil {
		return nil, &StorageError{Op: "apply payment to balance", Err: err}
	}
	return balance, nil
}

// RetractInTx removes a refunded amount from the pair's balance, symmetric to
// ApplyInTx. When the refund reopens a fully-paid balance its next due date is
// restored from the schedule so overdue detection keeps working.
func (s *BalanceService) RetractInTx(tx *gorm.DB, schedule *models.FeeSchedule, payment *models.Payment, amount decimal.Decimal) (*models.FeeBalance, error) {
	balance, err := s.lockBalance(tx, schedule, payment.StudentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	balance.PaidAmount = balance.PaidAmount.Sub(amount)
	if balance.PaidAmount.IsNegative() {
		balance.PaidAmount = decimal.Zero
	}
	balance.Recalculate(now)
	if !balance.IsFullyPaid && balance.NextDueDate == nil {
		balance.NextDueDate = schedule.NextDueAfter(now)
		balance.Recalculate(now)
	}

	if err := tx.Save(balance).Error; err != nil {
		return nil, &StorageError{Op: "retract payment from balance", Err: err}
	}
	return balance, nil
}

// RecalculateForScheduleChangeInTx re-derives every balance that references
// the schedule after its amounts changed. Runs in the same transaction as the
// schedule update.
func (s *BalanceService) RecalculateForScheduleChangeInTx(tx *gorm.DB, schedule *models.FeeSchedule) error {
	var balances []models.FeeBalance
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("fee_schedule_id = ?", schedule.ID).
		Find(&balances).Error; err != nil {
		return &StorageError{Op: "load dependent balances", Err: err}
	}

	now := time.Now()
	for i := range balances {
		balances[i].TotalAmount = schedule.TotalAmount
		balances[i].Recalculate(now)
		if balances[i].IsFullyPaid {
			balances[i].NextDueDate = nil
		} else if balances[i].NextDueDate == nil {
			balances[i].NextDueDate = schedule.NextDueAfter(now)
			balances[i].Recalculate(now)
		}
		if err := tx.Save(&balances[i]).Error; err != nil {
			return &StorageError{Op: "save recalculated balance", Err: err}
		}
	}
	return nil
}

// GetBalance returns the balance row for a (student, schedule) pair
func (s *BalanceService) GetBalance(ctx context.Context, studentID, scheduleID uint) (*models.FeeBalance, error) {
	var balance models.FeeBalance
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND fee_schedule_id = ?", studentID, scheduleID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "fee balance for student", ID: studentID}
		}
		return nil, &StorageError{Op: "load balance", Err: err}
	}
	return &balance, nil
}

// ListForStudent returns every balance a student holds, schedules preloaded,
// newest academic year first.
func (s *BalanceService) ListForStudent(ctx context.Context, studentID uint) ([]models.FeeBalance, error) {
	var balances []models.FeeBalance
	err := s.db.WithContext(ctx).
		Preload("FeeSchedule").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&balances).Error
	if err != nil {
		return nil, &StorageError{Op: "list student balances", Err: err}
	}
	return balances, nil
}

// RefreshOverdueFlags re-evaluates the stored overdue flag across a school's
// balances. The flag is derived state that goes stale as days pass without
// writes; the worker calls this nightly.
func (s *BalanceService) RefreshOverdueFlags(ctx context.Context, schoolID uint) (int, error) {
	updated := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var balances []models.FeeBalance
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if schoolID != 0 {
			q = q.Where("school_id = ?", schoolID)
		}
		if err := q.Find(&balances).Error; err != nil {
			return &StorageError{Op: "load balances", Err: err}
		}

		now := time.Now()
		for i := range balances {
			was := balances[i].IsOverdue
			balances[i].Recalculate(now)
			if balances[i].IsOverdue == was {
				continue
			}
			if err := tx.Model(&balances[i]).Update("is_overdue", balances[i].IsOverdue).Error; err != nil {
				return &StorageError{Op: "update overdue flag", Err: err}
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// lockBalance ensures the row exists and returns it under an exclusive lock
func (s *BalanceService) lockBalance(tx *gorm.DB, schedule *models.FeeSchedule, studentID uint) (*models.FeeBalance, error) {
	if _, err := s.EnsureInTx(tx, schedule, studentID); err != nil {
		return nil, err
	}

	var balance models.FeeBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND fee_schedule_id = ?", studentID, schedule.ID).
		First(&balance).Error
	if err != nil {
		return nil, &StorageError{Op: "lock balance", Err: err}
	}
	return &balance, nil
}
