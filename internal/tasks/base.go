package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"schoolfees_app/internal/models"
)

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
	}, nil
}

// SeedRecurringTasks makes sure the nightly maintenance tasks exist. Existing
// rows keep their due date and status; seeding twice is a no-op.
func SeedRecurringTasks(db *gorm.DB) error {
	daily := "FREQ=DAILY"
	midnight := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)

	for _, name := range []string{TaskRefreshOverdueFlags, TaskSendFeeReminders} {
		task, err := BuildScheduledTask(name, map[string]interface{}{}, midnight, &daily, models.ScheduledTaskTypeRecurring)
		if err != nil {
			return err
		}
		var existing models.ScheduledTask
		err = db.Where("task_name = ?", name).Attrs(*task).FirstOrCreate(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to seed task %s: %w", name, err)
		}
	}
	return nil
}
