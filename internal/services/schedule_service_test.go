package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"schoolfees_app/internal/models"
)

func newScheduleFixture(t *testing.T) (*gorm.DB, *ScheduleService, models.School, models.Class) {
	t.Helper()
	db := newTestDB(t)
	school := seedSchool(t, db, "Test School")
	class := seedClass(t, db, school.ID, "Class 5", "A")
	svc := NewScheduleService(db, nil, NewBalanceService(db))
	return db, svc, school, class
}

func TestCreateScheduleRejectsDuplicateActive(t *testing.T) {
	_, svc, school, class := newScheduleFixture(t)
	ctx := context.Background()

	first := models.FeeSchedule{
		SchoolID: school.ID, ClassID: class.ID, AcademicYear: "2026-27",
		TotalAmount: amount("50000.00"), InstallmentCount: 1,
		StartDate: time.Now(), IsActive: true,
	}
	require.NoError(t, svc.CreateSchedule(ctx, &first))
	require.NotZero(t, first.ID)

	dup := models.FeeSchedule{
		SchoolID: school.ID, ClassID: class.ID, AcademicYear: "2026-27",
		TotalAmount: amount("60000.00"), InstallmentCount: 1,
		StartDate: time.Now(), IsActive: true,
	}
	err := svc.CreateSchedule(ctx, &dup)
	var dupErr *DuplicateScheduleError
	require.ErrorAs(t, err, &dupErr)

	// a different academic year is fine
	nextYear := models.FeeSchedule{
		SchoolID: school.ID, ClassID: class.ID, AcademicYear: "2027-28",
		TotalAmount: amount("60000.00"), InstallmentCount: 1,
		StartDate: time.Now(), IsActive: true,
	}
	require.NoError(t, svc.CreateSchedule(ctx, &nextYear))
}

func TestDeactivatedScheduleCanBeReplaced(t *testing.T) {
	_, svc, school, class := newScheduleFixture(t)
	ctx := context.Background()

	original := models.FeeSchedule{
		SchoolID: school.ID, ClassID: class.ID, AcademicYear: "2026-27",
		TotalAmount: amount("50000.00"), InstallmentCount: 1,
		StartDate: time.Now(), IsActive: true,
	}
	require.NoError(t, svc.CreateSchedule(ctx, &original))
	require.NoError(t, svc.DeactivateSchedule(ctx, original.ID))

	// a corrected schedule for the same triple replaces the retired one
	replacement := models.FeeSchedule{
		SchoolID: school.ID, ClassID: class.ID, AcademicYear: "2026-27",
		TotalAmount: amount("55000.00"), InstallmentCount: 1,
		StartDate: time.Now(), IsActive: true,
	}
	require.NoError(t, svc.CreateSchedule(ctx, &replacement))
	require.NotZero(t, replacement.ID)

	// the retired schedule stays readable for history
	retired, err := svc.GetSchedule(ctx, original.ID)
	require.NoError(t, err)
	require.False(t, retired.IsActive)
}

func TestCreateScheduleValidation(t *testing.T) {
	_, svc, school, class := newScheduleFixture(t)
	ctx := context.Background()
	var invalid *InvalidAmountError

	err := svc.CreateSchedule(ctx, &models.FeeSchedule{
		SchoolID: school.ID, ClassID: class.ID, AcademicYear: "2026-27",
		TotalAmount: amount("0.00"), InstallmentCount: 1, StartDate: time.Now(), IsActive: true,
	})
	require.ErrorAs(t, err, &invalid)

	badRule := "FREQ=NOT_A_FREQ"
	err = svc.CreateSchedule(ctx, &models.FeeSchedule{
		SchoolID: school.ID, ClassID: class.ID, AcademicYear: "2026-27",
		TotalAmount: amount("50000.00"), InstallmentCount: 4,
		StartDate: time.Now(), DueDateRule: &badRule, IsActive: true,
	})
	require.ErrorAs(t, err, &invalid)
}

func TestUpdateScheduleCascadesIntoBalances(t *testing.T) {
	db, svc, school, class := newScheduleFixture(t)
	ctx := context.Background()

	student := seedStudent(t, db, school.ID, class.ID, "Asha")
	schedule := seedSchedule(t, db, school.ID, class.ID, "2026-27", amount("50000.00"), time.Now().AddDate(0, 1, 0))

	balances := NewBalanceService(db)
	payments := NewPaymentService(db, NewReceiptService(db), balances, nil)
	_, err := payments.RecordPayment(ctx, RecordPaymentInput{
		SchoolID: school.ID, StudentID: student.ID, FeeScheduleID: schedule.ID,
		Amount: amount("20000.00"), Mode: models.PaymentModeCash,
	})
	require.NoError(t, err)

	newTotal := amount("40000.00")
	updated, err := svc.UpdateSchedule(ctx, schedule.ID, ScheduleUpdate{TotalAmount: &newTotal})
	require.NoError(t, err)
	require.True(t, updated.TotalAmount.Equal(newTotal))

	balance, err := balances.GetBalance(ctx, student.ID, schedule.ID)
	require.NoError(t, err)
	require.True(t, balance.TotalAmount.Equal(newTotal))
	require.True(t, balance.RemainingAmount.Equal(amount("20000.00")))
	require.InDelta(t, 50.0, balance.PaymentPercentage, 0.01)
}

func TestUpdateScheduleCanFullySettleBalances(t *testing.T) {
	db, svc, school, class := newScheduleFixture(t)
	ctx := context.Background()

	student := seedStudent(t, db, school.ID, class.ID, "Asha")
	schedule := seedSchedule(t, db, school.ID, class.ID, "2026-27", amount("50000.00"), time.Now().AddDate(0, 1, 0))

	balances := NewBalanceService(db)
	payments := NewPaymentService(db, NewReceiptService(db), balances, nil)
	_, err := payments.RecordPayment(ctx, RecordPaymentInput{
		SchoolID: school.ID, StudentID: student.ID, FeeScheduleID: schedule.ID,
		Amount: amount("30000.00"), Mode: models.PaymentModeCash,
	})
	require.NoError(t, err)

	// lowering the total below the paid amount settles the balance
	newTotal := amount("25000.00")
	_, err = svc.UpdateSchedule(ctx, schedule.ID, ScheduleUpdate{TotalAmount: &newTotal})
	require.NoError(t, err)

	balance, err := balances.GetBalance(ctx, student.ID, schedule.ID)
	require.NoError(t, err)
	require.True(t, balance.IsFullyPaid)
	require.True(t, balance.RemainingAmount.IsZero())
	require.Nil(t, balance.NextDueDate)
}

func TestGetScheduleNotFound(t *testing.T) {
	_, svc, _, _ := newScheduleFixture(t)

	_, err := svc.GetSchedule(context.Background(), 9999)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDeleteScheduleRefusesWithPayments(t *testing.T) {
	db, svc, school, class := newScheduleFixture(t)
	ctx := context.Background()

	student := seedStudent(t, db, school.ID, class.ID, "Asha")
	schedule := seedSchedule(t, db, school.ID, class.ID, "2026-27", amount("50000.00"), time.Now())

	balances := NewBalanceService(db)
	payments := NewPaymentService(db, NewReceiptService(db), balances, nil)
	_, err := payments.RecordPayment(ctx, RecordPaymentInput{
		SchoolID: school.ID, StudentID: student.ID, FeeScheduleID: schedule.ID,
		Amount: amount("100.00"), Mode: models.PaymentModeCash,
	})
	require.NoError(t, err)

	err = svc.DeleteSchedule(ctx, schedule.ID)
	var invalid *InvalidAmountError
	require.ErrorAs(t, err, &invalid)

	// deactivation is the supported path
	require.NoError(t, svc.DeactivateSchedule(ctx, schedule.ID))
	loaded, err := svc.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	require.False(t, loaded.IsActive)
}

func TestDeleteUnusedSchedule(t *testing.T) {
	db, svc, school, class := newScheduleFixture(t)
	ctx := context.Background()

	schedule := seedSchedule(t, db, school.ID, class.ID, "2026-27", amount("50000.00"), time.Now())
	require.NoError(t, svc.DeleteSchedule(ctx, schedule.ID))

	_, err := svc.GetSchedule(ctx, schedule.ID)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestScheduleDueDatesFromRule(t *testing.T) {
	_, svc, school, class := newScheduleFixture(t)
	ctx := context.Background()

	rule := "FREQ=MONTHLY;COUNT=12"
	schedule := models.FeeSchedule{
		SchoolID: school.ID, ClassID: class.ID, AcademicYear: "2026-27",
		TotalAmount: amount("48000.00"), InstallmentCount: 4,
		StartDate:   time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		DueDateRule: &rule, IsActive: true,
	}
	require.NoError(t, svc.CreateSchedule(ctx, &schedule))

	dates := schedule.DueDates()
	require.Len(t, dates, 4) // capped at the installment count
	require.Equal(t, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), dates[0])
	require.Equal(t, time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC), dates[3])

	next := schedule.NextDueAfter(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, next)
	require.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), *next)
}
