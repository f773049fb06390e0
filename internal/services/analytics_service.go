package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"schoolfees_app/internal/models"
)

// AnalyticsService aggregates collection figures over date windows. Only
// completed payments count; pending, failed and refunded rows are excluded
// from every figure. Window bounds are inclusive on both ends.
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new collection analytics service
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// CollectionSummary is the headline figure for a window plus the comparison
// against the immediately preceding window of the same length
type CollectionSummary struct {
	From               time.Time                  `json:"from"`
	To                 time.Time                  `json:"to"`
	TotalCollected     decimal.Decimal            `json:"total_collected"`
	TransactionCount   int                        `json:"transaction_count"`
	AverageTransaction decimal.Decimal            `json:"average_transaction"`
	ByMode             map[string]decimal.Decimal `json:"by_mode"`
	TotalOutstanding   decimal.Decimal            `json:"total_outstanding"`
	PreviousTotal      decimal.Decimal            `json:"previous_total"`
	GrowthPercentage   float64                    `json:"growth_percentage"`
}

// ClassCollection is one class's share of a window's collections
type ClassCollection struct {
	ClassID          uint            `json:"class_id"`
	ClassName        string          `json:"class_name"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TransactionCount int             `json:"transaction_count"`
}

// TrendPoint is one bucket of a daily or monthly trend
type TrendPoint struct {
	Period           string          `json:"period"` // 2006-01-02 daily, 2006-01 monthly
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TransactionCount int             `json:"transaction_count"`
}

// Summary computes the collection totals for [from, to] and the growth
// percentage against the preceding window of equal length.
func (s *AnalyticsService) Summary(ctx context.Context, schoolID uint, from, to time.Time) (*CollectionSummary, error) {
	from, to = dateOnly(from), dateOnly(to)

	payments, err := s.completedPayments(ctx, schoolID, from, to)
	if err != nil {
		return nil, err
	}

	summary := CollectionSummary{
		From:               from,
		To:                 to,
		TotalCollected:     decimal.Zero,
		AverageTransaction: decimal.Zero,
		ByMode:             map[string]decimal.Decimal{},
		TotalOutstanding:   decimal.Zero,
		PreviousTotal:      decimal.Zero,
	}
	for _, p := range payments {
		summary.TotalCollected = summary.TotalCollected.Add(p.Amount)
		summary.TransactionCount++
		mode := string(p.Mode)
		summary.ByMode[mode] = summary.ByMode[mode].Add(p.Amount)
	}
	if summary.TransactionCount > 0 {
		summary.AverageTransaction = summary.TotalCollected.
			Div(decimal.NewFromInt(int64(summary.TransactionCount))).Round(2)
	}

	outstanding, err := s.outstandingTotal(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	summary.TotalOutstanding = outstanding

	// Preceding window of the same length, ending the day before "from".
	windowDays := int(to.Sub(from).Hours()/24) + 1
	prevTo := from.AddDate(0, 0, -1)
	prevFrom := prevTo.AddDate(0, 0, -(windowDays - 1))
	previous, err := s.completedPayments(ctx, schoolID, prevFrom, prevTo)
	if err != nil {
		return nil, err
	}
	for _, p := range previous {
		summary.PreviousTotal = summary.PreviousTotal.Add(p.Amount)
	}

	summary.GrowthPercentage = growthPercentage(summary.PreviousTotal, summary.TotalCollected)
	return &summary, nil
}

// ClassBreakdown splits a window's collections by the students' class
func (s *AnalyticsService) ClassBreakdown(ctx context.Context, schoolID uint, from, to time.Time) ([]ClassCollection, error) {
	from, to = dateOnly(from), dateOnly(to)

	payments, err := s.completedPayments(ctx, schoolID, from, to, "Student")
	if err != nil {
		return nil, err
	}

	byClass := map[uint]*ClassCollection{}
	for _, p := range payments {
		classID := p.Student.ClassID
		entry, ok := byClass[classID]
		if !ok {
			entry = &ClassCollection{ClassID: classID, TotalCollected: decimal.Zero}
			byClass[classID] = entry
		}
		entry.TotalCollected = entry.TotalCollected.Add(p.Amount)
		entry.TransactionCount++
	}

	classIDs := make([]uint, 0, len(byClass))
	for id := range byClass {
		classIDs = append(classIDs, id)
	}
	if len(classIDs) > 0 {
		var classes []models.Class
		if err := s.db.WithContext(ctx).Where("id IN ?", classIDs).Find(&classes).Error; err != nil {
			return nil, &StorageError{Op: "load classes", Err: err}
		}
		for _, c := range classes {
			if entry, ok := byClass[c.ID]; ok {
				entry.ClassName = c.DisplayName()
			}
		}
	}

	breakdown := make([]ClassCollection, 0, len(byClass))
	for _, entry := range byClass {
		breakdown = append(breakdown, *entry)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].TotalCollected.GreaterThan(breakdown[j].TotalCollected)
	})
	return breakdown, nil
}

// DailyTrend buckets a window's collections per calendar day. Days without
// payments are omitted.
func (s *AnalyticsService) DailyTrend(ctx context.Context, schoolID uint, from, to time.Time) ([]TrendPoint, error) {
	return s.trend(ctx, schoolID, from, to, "2006-01-02")
}

// MonthlyTrend buckets a window's collections per calendar month
func (s *AnalyticsService) MonthlyTrend(ctx context.Context, schoolID uint, from, to time.Time) ([]TrendPoint, error) {
	return s.trend(ctx, schoolID, from, to, "2006-01")
}

func (s *AnalyticsService) trend(ctx context.Context, schoolID uint, from, to time.Time, layout string) ([]TrendPoint, error) {
	from, to = dateOnly(from), dateOnly(to)

	payments, err := s.completedPayments(ctx, schoolID, from, to)
	if err != nil {
		return nil, err
	}

	buckets := map[string]*TrendPoint{}
	for _, p := range payments {
		key := p.PaymentDate.Format(layout)
		entry, ok := buckets[key]
		if !ok {
			entry = &TrendPoint{Period: key, TotalCollected: decimal.Zero}
			buckets[key] = entry
		}
		entry.TotalCollected = entry.TotalCollected.Add(p.Amount)
		entry.TransactionCount++
	}

	points := make([]TrendPoint, 0, len(buckets))
	for _, entry := range buckets {
		points = append(points, *entry)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}

// outstandingTotal sums the remaining amount across a school's balances as of
// now; it is not windowed.
func (s *AnalyticsService) outstandingTotal(ctx context.Context, schoolID uint) (decimal.Decimal, error) {
	q := s.db.WithContext(ctx).Model(&models.FeeBalance{})
	if schoolID != 0 {
		q = q.Where("school_id = ?", schoolID)
	}

	var balances []models.FeeBalance
	if err := q.Find(&balances).Error; err != nil {
		return decimal.Zero, &StorageError{Op: "load balances", Err: err}
	}

	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.RemainingAmount)
	}
	return total, nil
}

func (s *AnalyticsService) completedPayments(ctx context.Context, schoolID uint, from, to time.Time, preloads ...string) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).
		Where("status = ?", models.PaymentStatusCompleted).
		Where("payment_date >= ? AND payment_date <= ?", from, to)
	if schoolID != 0 {
		q = q.Where("school_id = ?", schoolID)
	}
	for _, preload := range preloads {
		q = q.Preload(preload)
	}

	var payments []models.Payment
	if err := q.Find(&payments).Error; err != nil {
		return nil, &StorageError{Op: "load completed payments", Err: err}
	}
	return payments, nil
}

// growthPercentage compares two window totals. Both zero reads as no growth;
// collections appearing from a zero base read as +100%.
func growthPercentage(previous, current decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsZero() {
			return 0
		}
		return 100
	}
	pct, _ := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
