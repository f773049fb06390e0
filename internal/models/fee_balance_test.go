package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecalculatePartialPayment(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	b := FeeBalance{TotalAmount: d("50000.00"), PaidAmount: d("20000.00")}

	b.Recalculate(today)

	require.True(t, b.RemainingAmount.Equal(d("30000.00")))
	require.InDelta(t, 40.0, b.PaymentPercentage, 0.01)
	require.False(t, b.IsFullyPaid)
	require.False(t, b.IsOverdue)
}

func TestRecalculateClampsOverpayment(t *testing.T) {
	b := FeeBalance{TotalAmount: d("50000.00"), PaidAmount: d("60000.00")}
	b.Recalculate(time.Now())

	require.True(t, b.RemainingAmount.IsZero())
	require.True(t, b.IsFullyPaid)
	require.InDelta(t, 120.0, b.PaymentPercentage, 0.01)
}

func TestRecalculateZeroTotal(t *testing.T) {
	b := FeeBalance{TotalAmount: decimal.Zero, PaidAmount: decimal.Zero}
	b.Recalculate(time.Now())

	require.True(t, b.IsFullyPaid)
	require.Zero(t, b.PaymentPercentage)
}

func TestRecalculateOverdue(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	pastDue := today.AddDate(0, 0, -10)

	b := FeeBalance{TotalAmount: d("50000.00"), PaidAmount: d("10000.00"), NextDueDate: &pastDue}
	b.Recalculate(today)
	require.True(t, b.IsOverdue)
	require.Equal(t, 10, b.DaysOverdue(today))

	// settling the balance clears the overdue state even with a past due date
	b.PaidAmount = d("50000.00")
	b.Recalculate(today)
	require.False(t, b.IsOverdue)
	require.Zero(t, b.DaysOverdue(today))
}

func TestDaysOverdueIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	// due 10 calendar days ago, but with an afternoon clock component
	pastDue := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)

	b := FeeBalance{TotalAmount: d("50000.00"), PaidAmount: decimal.Zero, NextDueDate: &pastDue}
	b.Recalculate(today)
	require.True(t, b.IsOverdue)
	require.Equal(t, 10, b.DaysOverdue(today))

	// and a late-evening "today" does not add a day either
	require.Equal(t, 10, b.DaysOverdue(today.Add(23*time.Hour)))
}

func TestRecalculateFutureDueNotOverdue(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	futureDue := today.AddDate(0, 0, 5)

	b := FeeBalance{TotalAmount: d("50000.00"), PaidAmount: decimal.Zero, NextDueDate: &futureDue}
	b.Recalculate(today)
	require.False(t, b.IsOverdue)
}
