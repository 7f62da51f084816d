package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadFollowUp = "leads.follow_up"

const TaskMonthlyReports = "reports.monthly"

const TaskReconcile = "reconcile.run"

// Cron specs, evaluated in UTC.
const (
	MonthlyReportsCron = "0 6 1 * *"
	ReconcileCron      = "0 3 * * *"
)

type LeadFollowUpPayload struct {
	ScheduledEmailID string `json:"scheduledEmailId"`
}

// MonthlyReportsPayload selects the report month. Zero values mean the
// previous month at run time.
type MonthlyReportsPayload struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

func NewLeadFollowUpTask(payload LeadFollowUpPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadFollowUp, data), nil
}

func ParseLeadFollowUpPayload(task *asynq.Task) (LeadFollowUpPayload, error) {
	var payload LeadFollowUpPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadFollowUpPayload{}, err
	}
	return payload, nil
}

func NewMonthlyReportsTask(payload MonthlyReportsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMonthlyReports, data), nil
}

func ParseMonthlyReportsPayload(task *asynq.Task) (MonthlyReportsPayload, error) {
	var payload MonthlyReportsPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MonthlyReportsPayload{}, err
	}
	return payload, nil
}

func NewReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskReconcile, nil)
}
