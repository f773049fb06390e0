package tasks

import "schoolfees_app/internal/services"

// DefineTasks registers all available tasks
func DefineTasks(notifier services.Notifier) {
	RegisterHandler(RefreshOverdueFlagsTask.TaskID(), RefreshOverdueFlagsTask.HandleExecution)

	reminders := &SendFeeRemindersTaskDef{Notifier: notifier}
	RegisterHandler(reminders.TaskID(), reminders.HandleExecution)
}
