package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"schoolfees_app/internal/models"
)

// DefaulterService finds students whose fee balance is past due. The overdue
// predicate is evaluated against the live next_due_date at query time, not the
// stored flag, so results are correct even between worker refreshes.
type DefaulterService struct {
	db *gorm.DB
}

// NewDefaulterService creates a new defaulter finder
func NewDefaulterService(db *gorm.DB) *DefaulterService {
	return &DefaulterService{db: db}
}

// Defaulter is one overdue balance joined with its student context
type Defaulter struct {
	StudentID       uint            `json:"student_id"`
	StudentName     string          `json:"student_name"`
	AdmissionNo     string          `json:"admission_no"`
	Phone           string          `json:"phone,omitempty"`
	ClassID         uint            `json:"class_id"`
	ClassName       string          `json:"class_name"`
	FeeScheduleID   uint            `json:"fee_schedule_id"`
	AcademicYear    string          `json:"academic_year"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	NextDueDate     time.Time       `json:"next_due_date"`
	DaysOverdue     int             `json:"days_overdue"`
}

// DefaulterFilter narrows ListOverdue; zero values are ignored
type DefaulterFilter struct {
	SchoolID    uint
	ClassID     uint
	MinDaysOver int
}

// ListOverdue returns overdue balances ordered by due date, longest overdue
// first. Only active students count.
func (s *DefaulterService) ListOverdue(ctx context.Context, filter DefaulterFilter) ([]Defaulter, error) {
	today := dateOnly(time.Now())

	q := s.db.WithContext(ctx).Model(&models.FeeBalance{}).
		Joins("Student").
		Joins("FeeSchedule").
		Where("fee_balances.next_due_date < ?", today).
		Where("fee_balances.remaining_amount > 0").
		Where("\"Student\".status = ?", "active")
	if filter.SchoolID != 0 {
		q = q.Where("fee_balances.school_id = ?", filter.SchoolID)
	}
	if filter.ClassID != 0 {
		q = q.Where("\"Student\".class_id = ?", filter.ClassID)
	}

	var balances []models.FeeBalance
	if err := q.Order("fee_balances.next_due_date ASC").Find(&balances).Error; err != nil {
		return nil, &StorageError{Op: "list overdue balances", Err: err}
	}

	classNames, err := s.classNames(ctx, balances)
	if err != nil {
		return nil, err
	}

	defaulters := make([]Defaulter, 0, len(balances))
	for _, b := range balances {
		b.IsOverdue = true
		days := b.DaysOverdue(today)
		if days < filter.MinDaysOver {
			continue
		}
		defaulters = append(defaulters, Defaulter{
			StudentID:       b.StudentID,
			StudentName:     b.Student.Name,
			AdmissionNo:     b.Student.AdmissionNo,
			Phone:           b.Student.Phone,
			ClassID:         b.Student.ClassID,
			ClassName:       classNames[b.Student.ClassID],
			FeeScheduleID:   b.FeeScheduleID,
			AcademicYear:    b.FeeSchedule.AcademicYear,
			TotalAmount:     b.TotalAmount,
			PaidAmount:      b.PaidAmount,
			RemainingAmount: b.RemainingAmount,
			NextDueDate:     *b.NextDueDate,
			DaysOverdue:     days,
		})
	}
	return defaulters, nil
}

func (s *DefaulterService) classNames(ctx context.Context, balances []models.FeeBalance) (map[uint]string, error) {
	ids := make([]uint, 0, len(balances))
	seen := make(map[uint]bool)
	for _, b := range balances {
		if id := b.Student.ClassID; id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[uint]string{}, nil
	}

	var classes []models.Class
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&classes).Error; err != nil {
		return nil, &StorageError{Op: "load classes", Err: err}
	}

	names := make(map[uint]string, len(classes))
	for _, c := range classes {
		names[c.ID] = c.DisplayName()
	}
	return names, nil
}
