package domain

import "time"

// Trigger types for schedules.
const (
	TriggerManual    = "manual"
	TriggerCron      = "cron"
	TriggerFileWatch = "file_watch"
)

// Schedule runs a workspace headlessly when its trigger fires. For cron
// triggers TriggerConfig is the cron expression; for file_watch it is the
// path of a workspace XML file that is re-imported before each run.
type Schedule struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspaceId"`
	Name          string     `json:"name"`
	TriggerType   string     `json:"triggerType"`
	TriggerConfig string     `json:"triggerConfig"`
	Enabled       bool       `json:"enabled"`
	LastRunAt     *time.Time `json:"lastRunAt"`
	LastStatus    string     `json:"lastStatus"`
	LastError     string     `json:"lastError"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// RunLog records one headless run.
type RunLog struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	ScheduleID  string    `json:"scheduleId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	Output      string    `json:"output"`
	Error       string    `json:"error"`
}

type ScheduleStore interface {
	CreateSchedule(s *Schedule) error
	GetSchedule(id string) (*Schedule, error)
	ListSchedules() ([]Schedule, error)
	ListEnabledTriggered() ([]Schedule, error)
	UpdateSchedule(s *Schedule) error
	UpdateScheduleStatus(id, status, errMsg string) error
	DeleteSchedule(id string) error

	CreateRunLog(l *RunLog) error
	ListRunLogs(workspaceID string, limit int) ([]RunLog, error)
}
