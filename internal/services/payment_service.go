package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schoolfees_app/internal/models"
)

// maxTxRetries bounds the internal retries on lock conflicts before the
// caller gets a ConcurrencyConflictError.
const maxTxRetries = 3

// PaymentService is the payment ledger. Recording a payment writes the
// payment row, its audit history and the balance update in one transaction;
// partial writes are never observable. Notifications go out only after commit.
type PaymentService struct {
	db       *gorm.DB
	receipts *ReceiptService
	balances *BalanceService
	notifier Notifier
}

// NewPaymentService creates a new payment service. notifier may be nil.
func NewPaymentService(db *gorm.DB, receipts *ReceiptService, balances *BalanceService, notifier Notifier) *PaymentService {
	return &PaymentService{db: db, receipts: receipts, balances: balances, notifier: notifier}
}

// RecordPaymentInput carries a new payment from the boundary
type RecordPaymentInput struct {
	SchoolID      uint
	StudentID     uint
	FeeScheduleID uint
	Amount        decimal.Decimal
	PaymentDate   time.Time // zero value means today
	Mode          models.PaymentMode
	TransactionID *string
	ChequeNo      *string
	BankName      *string
	Remarks       *string
	CollectedBy   string
}

// RecordPayment validates the input, allocates a receipt number and commits
// payment, history and balance update atomically. Overpayment is allowed; the
// remaining amount clamps at zero.
func (s *PaymentService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error) {
	if !input.Amount.IsPositive() {
		return nil, &InvalidAmountError{Reason: "payment amount must be positive"}
	}
	switch input.Mode {
	case models.PaymentModeOnline:
		if input.TransactionID == nil || *input.TransactionID == "" {
			return nil, &InvalidAmountError{Reason: "transaction id is required for online payments"}
		}
	case models.PaymentModeCheque:
		if input.ChequeNo == nil || *input.ChequeNo == "" {
			return nil, &InvalidAmountError{Reason: "cheque number is required for cheque payments"}
		}
	}

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}
	paymentDate = dateOnly(paymentDate)

	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, input.StudentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "student", ID: input.StudentID}
		}
		return nil, &StorageError{Op: "load student", Err: err}
	}

	var schedule models.FeeSchedule
	if err := s.db.WithContext(ctx).First(&schedule, input.FeeScheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "fee schedule", ID: input.FeeScheduleID}
		}
		return nil, &StorageError{Op: "load schedule", Err: err}
	}
	if !schedule.IsActive {
		return nil, &InactiveScheduleError{ScheduleID: schedule.ID}
	}
	if student.SchoolID != schedule.SchoolID {
		return nil, &InvalidAmountError{Reason: fmt.Sprintf("student %d is not enrolled in the schedule's school", student.ID)}
	}
	if input.SchoolID != schedule.SchoolID {
		return nil, &InvalidAmountError{Reason: fmt.Sprintf("fee schedule %d belongs to a different school", schedule.ID)}
	}

	var payment *models.Payment
	var balance *models.FeeBalance
	err := s.withConflictRetry(ctx, "record payment", func(tx *gorm.DB) error {
		receiptNo, err := s.receipts.NextInTx(tx, input.SchoolID, paymentDate)
		if err != nil {
			return err
		}

		p := models.Payment{
			SchoolID:      input.SchoolID,
			StudentID:     input.StudentID,
			FeeScheduleID: input.FeeScheduleID,
			ReceiptNo:     receiptNo,
			Amount:        input.Amount,
			PaymentDate:   paymentDate,
			Mode:          input.Mode,
			Status:        models.PaymentStatusCompleted,
			TransactionID: input.TransactionID,
			ChequeNo:      input.ChequeNo,
			BankName:      input.BankName,
			Remarks:       input.Remarks,
			CollectedBy:   input.CollectedBy,
		}
		if err := tx.Create(&p).Error; err != nil {
			return &StorageError{Op: "create payment", Err: err}
		}

		history := models.PaymentHistory{
			PaymentID:     p.ID,
			Action:        models.HistoryActionCreated,
			NewStatus:     string(models.PaymentStatusCompleted),
			AmountChanged: p.Amount,
			ChangedBy:     input.CollectedBy,
		}
		if err := tx.Create(&history).Error; err != nil {
			return &StorageError{Op: "create payment history", Err: err}
		}

		balance, err = s.balances.ApplyInTx(tx, &schedule, &p)
		if err != nil {
			return err
		}

		payment = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyAsync(EventPaymentConfirmation, payment.StudentID, map[string]string{
		"receipt_no": payment.ReceiptNo,
		"amount":     payment.Amount.StringFixed(2),
		"remaining":  balance.RemainingAmount.StringFixed(2),
	})
	return payment, nil
}

// RefundPayment reverses a completed payment. The payment row keeps its
// original amount and flips to refunded; the balance is retracted by the
// refund amount in the same transaction. A zero refundAmount means a full
// refund.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID uint, refundAmount decimal.Decimal, reason, actor string) (*models.Payment, error) {
	if refundAmount.IsNegative() {
		return nil, &InvalidAmountError{Reason: "refund amount must be positive"}
	}

	var payment models.Payment
	err := s.withConflictRetry(ctx, "refund payment", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "payment", ID: paymentID}
			}
			return &StorageError{Op: "lock payment", Err: err}
		}

		if !payment.IsRefundable() {
			return &InvalidAmountError{Reason: fmt.Sprintf("payment %s is %s and cannot be refunded", payment.ReceiptNo, payment.Status)}
		}

		amount := refundAmount
		if amount.IsZero() {
			amount = payment.Amount
		}
		if amount.GreaterThan(payment.Amount) {
			return &InvalidAmountError{Reason: "refund amount exceeds the original payment amount"}
		}

		var schedule models.FeeSchedule
		if err := tx.First(&schedule, payment.FeeScheduleID).Error; err != nil {
			return &StorageError{Op: "load schedule", Err: err}
		}

		oldStatus := string(payment.Status)
		payment.Status = models.PaymentStatusRefunded
		if err := tx.Model(&payment).Update("status", payment.Status).Error; err != nil {
			return &StorageError{Op: "update payment status", Err: err}
		}

		var remarks *string
		if reason != "" {
			remarks = &reason
		}
		history := models.PaymentHistory{
			PaymentID:     payment.ID,
			Action:        models.HistoryActionRefunded,
			OldStatus:     &oldStatus,
			NewStatus:     string(models.PaymentStatusRefunded),
			AmountChanged: amount.Neg(),
			Remarks:       remarks,
			ChangedBy:     actor,
		}
		if err := tx.Create(&history).Error; err != nil {
			return &StorageError{Op: "create refund history", Err: err}
		}

		if _, err := s.balances.RetractInTx(tx, &schedule, &payment, amount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyAsync(EventPaymentRefunded, payment.StudentID, map[string]string{
		"receipt_no": payment.ReceiptNo,
		"amount":     payment.Amount.StringFixed(2),
	})
	return &payment, nil
}

// GetPayment returns a payment with its audit history
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		First(&payment, paymentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "payment", ID: paymentID}
		}
		return nil, &StorageError{Op: "load payment", Err: err}
	}
	return &payment, nil
}

// PaymentFilter narrows ListPayments; zero values are ignored
type PaymentFilter struct {
	SchoolID      uint
	StudentID     uint
	FeeScheduleID uint
	Status        models.PaymentStatus
	From          time.Time
	To            time.Time
}

// ListPayments returns matching payments, most recent first
func (s *PaymentService) ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).Model(&models.Payment{})
	if filter.SchoolID != 0 {
		q = q.Where("school_id = ?", filter.SchoolID)
	}
	if filter.StudentID != 0 {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.FeeScheduleID != 0 {
		q = q.Where("fee_schedule_id = ?", filter.FeeScheduleID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		q = q.Where("payment_date >= ?", dateOnly(filter.From))
	}
	if !filter.To.IsZero() {
		q = q.Where("payment_date <= ?", dateOnly(filter.To))
	}

	var payments []models.Payment
	if err := q.Order("payment_date DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, &StorageError{Op: "list payments", Err: err}
	}
	return payments, nil
}

// withConflictRetry runs fn in a transaction, retrying on lock conflicts
func (s *PaymentService) withConflictRetry(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryableConflict(err) {
			return err
		}
		log.Printf("%s: conflict on attempt %d, retrying", op, attempt+1)
	}
	return &ConcurrencyConflictError{Op: op}
}

func (s *PaymentService) notifyAsync(event string, studentID uint, payload map[string]string) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, event, studentID, payload); err != nil {
			log.Printf("notify [%s] student=%d failed: %v", event, studentID, err)
		}
	}()
}

// isRetryableConflict matches the driver errors produced when two transactions
// collide on the same rows
func isRetryableConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// dateOnly truncates a timestamp to its calendar date
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
