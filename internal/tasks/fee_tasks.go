package tasks

import (
	"context"
	"log"

	"gorm.io/gorm"

	"schoolfees_app/internal/models"
	"schoolfees_app/internal/services"
)

// Task names registered by this package
const (
	TaskRefreshOverdueFlags = "refresh_overdue_flags"
	TaskSendFeeReminders    = "send_fee_reminders"
)

// RefreshOverdueFlagsTaskDef re-derives the stored overdue flag on fee
// balances. The flag only changes when days pass, so the nightly run keeps it
// aligned with the live predicate the defaulter queries use.
type RefreshOverdueFlagsTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *RefreshOverdueFlagsTaskDef) TaskID() string {
	return TaskRefreshOverdueFlags
}

// HandleExecution refreshes the overdue flags, optionally scoped to one school
func (t *RefreshOverdueFlagsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	schoolID := uintArg(task.Arguments, "school_id")

	updated, err := services.NewBalanceService(db).RefreshOverdueFlags(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":  "success",
		"updated": updated,
	}, nil
}

// RefreshOverdueFlagsTask is the singleton instance of RefreshOverdueFlagsTaskDef
var RefreshOverdueFlagsTask = &RefreshOverdueFlagsTaskDef{}

// SendFeeRemindersTaskDef sends a reminder notification to every student with
// an overdue balance. A failed send is logged and skipped; one unreachable
// device must not block the rest of the batch.
type SendFeeRemindersTaskDef struct {
	Notifier services.Notifier
}

// TaskID returns the unique identifier for this task
func (t *SendFeeRemindersTaskDef) TaskID() string {
	return TaskSendFeeReminders
}

// HandleExecution dispatches reminders for all current defaulters
func (t *SendFeeRemindersTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	filter := services.DefaulterFilter{SchoolID: uintArg(task.Arguments, "school_id")}

	defaulters, err := services.NewDefaulterService(db).ListOverdue(ctx, filter)
	if err != nil {
		return nil, err
	}

	sent, failed := 0, 0
	for _, d := range defaulters {
		payload := map[string]string{
			"remaining":     d.RemainingAmount.StringFixed(2),
			"next_due_date": d.NextDueDate.Format("2006-01-02"),
			"academic_year": d.AcademicYear,
		}
		if err := t.Notifier.Notify(ctx, services.EventFeeReminder, d.StudentID, payload); err != nil {
			log.Printf("fee reminder for student %d failed: %v", d.StudentID, err)
			failed++
			continue
		}
		sent++
	}

	return map[string]interface{}{
		"status": "success",
		"sent":   sent,
		"failed": failed,
	}, nil
}

// uintArg reads a numeric argument that may arrive as float64 after the JSON
// round trip through the task table
func uintArg(args map[string]interface{}, key string) uint {
	switch v := args[key].(type) {
	case float64:
		return uint(v)
	case int:
		return uint(v)
	case uint:
		return v
	}
	return 0
}
