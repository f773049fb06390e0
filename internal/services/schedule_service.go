package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"
	"gorm.io/gorm"

	"schoolfees_app/internal/models"
)

const scheduleCacheTTL = 10 * time.Minute

// ScheduleService manages the fee schedule catalog. At most one active
// schedule may exist per (school, class, academic year); amount changes
// cascade into every dependent balance in the same transaction.
type ScheduleService struct {
	db             *gorm.DB
	cache          *RedisCache
	balanceService *BalanceService
}

// NewScheduleService creates a new schedule service. cache may be nil.
func NewScheduleService(db *gorm.DB, cache *RedisCache, balanceService *BalanceService) *ScheduleService {
	return &ScheduleService{db: db, cache: cache, balanceService: balanceService}
}

// ScheduleUpdate carries the mutable fields of a schedule; nil means unchanged
type ScheduleUpdate struct {
	TotalAmount      *decimal.Decimal
	TuitionFee       *decimal.Decimal
	AdmissionFee     *decimal.Decimal
	DevelopmentFee   *decimal.Decimal
	TransportFee     *decimal.Decimal
	LibraryFee       *decimal.Decimal
	LabFee           *decimal.Decimal
	SportsFee        *decimal.Decimal
	OtherFee         *decimal.Decimal
	InstallmentCount *int
	StartDate        *time.Time
	DueDateRule      *string
	IsActive         *bool
}

// CreateSchedule validates and persists a new fee schedule
func (s *ScheduleService) CreateSchedule(ctx context.Context, schedule *models.FeeSchedule) error {
	if err := validateSchedule(schedule); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.FeeSchedule{}).
			Where("school_id = ? AND class_id = ? AND academic_year = ? AND is_active = ?",
				schedule.SchoolID, schedule.ClassID, schedule.AcademicYear, true).
			Count(&count).Error
		if err != nil {
			return &StorageError{Op: "check duplicate schedule", Err: err}
		}
		if count > 0 && schedule.IsActive {
			return &DuplicateScheduleError{
				SchoolID:     schedule.SchoolID,
				ClassID:      schedule.ClassID,
				AcademicYear: schedule.AcademicYear,
			}
		}

		if err := tx.Create(schedule).Error; err != nil {
			return &StorageError{Op: "create schedule", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, schedule.ID)
	return nil
}

// UpdateSchedule applies the changes and re-derives every dependent balance
// in the same transaction, so no reader observes a schedule whose balances
// still reflect the old amounts.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, scheduleID uint, update ScheduleUpdate) (*models.FeeSchedule, error) {
	var schedule models.FeeSchedule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&schedule, scheduleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "fee schedule", ID: scheduleID}
			}
			return &StorageError{Op: "load schedule", Err: err}
		}

		amountChanged := applyScheduleUpdate(&schedule, update)
		if err := validateSchedule(&schedule); err != nil {
			return err
		}

		if err := tx.Save(&schedule).Error; err != nil {
			return &StorageError{Op: "update schedule", Err: err}
		}

		if amountChanged {
			if err := s.balanceService.RecalculateForScheduleChangeInTx(tx, &schedule); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, scheduleID)
	return &schedule, nil
}

// GetSchedule returns a schedule by id, served from cache when possible
func (s *ScheduleService) GetSchedule(ctx context.Context, scheduleID uint) (*models.FeeSchedule, error) {
	if s.cache == nil {
		return s.loadSchedule(ctx, scheduleID)
	}

	schedule, err := GetOrSet(s.cache, ctx, scheduleCacheKey(scheduleID), scheduleCacheTTL, func() (models.FeeSchedule, error) {
		loaded, err := s.loadSchedule(ctx, scheduleID)
		if err != nil {
			return models.FeeSchedule{}, err
		}
		return *loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListSchedules returns a school's schedules, newest first, optionally
// filtered by academic year.
func (s *ScheduleService) ListSchedules(ctx context.Context, schoolID uint, academicYear string) ([]models.FeeSchedule, error) {
	q := s.db.WithContext(ctx).Where("school_id = ?", schoolID)
	if academicYear != "" {
		q = q.Where("academic_year = ?", academicYear)
	}

	var schedules []models.FeeSchedule
	if err := q.Order("created_at DESC").Find(&schedules).Error; err != nil {
		return nil, &StorageError{Op: "list schedules", Err: err}
	}
	return schedules, nil
}

// DeactivateSchedule retires a schedule without touching historical payments
// or balances recorded against it.
func (s *ScheduleService) DeactivateSchedule(ctx context.Context, scheduleID uint) error {
	active := false
	_, err := s.UpdateSchedule(ctx, scheduleID, ScheduleUpdate{IsActive: &active})
	return err
}

// DeleteSchedule removes a schedule that has never been paid against.
// Schedules with recorded payments must be deactivated instead, so receipts
// keep resolving.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, scheduleID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var schedule models.FeeSchedule
		if err := tx.First(&schedule, scheduleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "fee schedule", ID: scheduleID}
			}
			return &StorageError{Op: "load schedule", Err: err}
		}

		var payments int64
		if err := tx.Model(&models.Payment{}).Where("fee_schedule_id = ?", scheduleID).Count(&payments).Error; err != nil {
			return &StorageError{Op: "count schedule payments", Err: err}
		}
		if payments > 0 {
			return &InvalidAmountError{Reason: fmt.Sprintf("fee schedule %d has recorded payments, deactivate it instead", scheduleID)}
		}

		if err := tx.Where("fee_schedule_id = ?", scheduleID).Delete(&models.FeeBalance{}).Error; err != nil {
			return &StorageError{Op: "delete schedule balances", Err: err}
		}
		if err := tx.Delete(&schedule).Error; err != nil {
			return &StorageError{Op: "delete schedule", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, scheduleID)
	return nil
}

func (s *ScheduleService) loadSchedule(ctx context.Context, scheduleID uint) (*models.FeeSchedule, error) {
	var schedule models.FeeSchedule
	err := s.db.WithContext(ctx).First(&schedule, scheduleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "fee schedule", ID: scheduleID}
		}
		return nil, &StorageError{Op: "load schedule", Err: err}
	}
	return &schedule, nil
}

func (s *ScheduleService) invalidate(ctx context.Context, scheduleID uint) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, scheduleCacheKey(scheduleID))
}

func scheduleCacheKey(scheduleID uint) string {
	return fmt.Sprintf("fee_schedule:%d", scheduleID)
}

func validateSchedule(schedule *models.FeeSchedule) error {
	if !schedule.TotalAmount.IsPositive() {
		return &InvalidAmountError{Reason: "total amount must be positive"}
	}
	if schedule.AcademicYear == "" {
		return &InvalidAmountError{Reason: "academic year is required"}
	}
	if schedule.InstallmentCount < 1 {
		return &InvalidAmountError{Reason: "installment count must be at least 1"}
	}
	if schedule.DueDateRule != nil && *schedule.DueDateRule != "" {
		if _, err := rrule.StrToRRule(*schedule.DueDateRule); err != nil {
			return &InvalidAmountError{Reason: fmt.Sprintf("invalid due date rule: %v", err)}
		}
	}
	return nil
}

func applyScheduleUpdate(schedule *models.FeeSchedule, update ScheduleUpdate) (amountChanged bool) {
	if update.TotalAmount != nil && !update.TotalAmount.Equal(schedule.TotalAmount) {
		schedule.TotalAmount = *update.TotalAmount
		amountChanged = true
	}
	if update.TuitionFee != nil {
		schedule.TuitionFee = *update.TuitionFee
	}
	if update.AdmissionFee != nil {
		schedule.AdmissionFee = *update.AdmissionFee
	}
	if update.DevelopmentFee != nil {
		schedule.DevelopmentFee = *update.DevelopmentFee
	}
	if update.TransportFee != nil {
		schedule.TransportFee = *update.TransportFee
	}
	if update.LibraryFee != nil {
		schedule.LibraryFee = *update.LibraryFee
	}
	if update.LabFee != nil {
		schedule.LabFee = *update.LabFee
	}
	if update.SportsFee != nil {
		schedule.SportsFee = *update.SportsFee
	}
	if update.OtherFee != nil {
		schedule.OtherFee = *update.OtherFee
	}
	if update.InstallmentCount != nil {
		schedule.InstallmentCount = *update.InstallmentCount
	}
	if update.StartDate != nil {
		schedule.StartDate = *update.StartDate
	}
	if update.DueDateRule != nil {
		schedule.DueDateRule = update.DueDateRule
	}
	if update.IsActive != nil {
		schedule.IsActive = *update.IsActive
	}
	return amountChanged
}
