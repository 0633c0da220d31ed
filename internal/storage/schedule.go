package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// ScheduleStore implements persistence for schedules and run logs.
type ScheduleStore struct {
	db *DB
}

func NewScheduleStore(db *DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// ── Schedule CRUD ──────────────────────────────────────────

const scheduleColumns = `id, workspace_id, name, trigger_type, trigger_config, enabled,
	last_run_at, last_status, last_error, created_at, updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (*domain.Schedule, error) {
	sc := &domain.Schedule{}
	var lastRun sql.NullTime
	err := row.Scan(
		&sc.ID, &sc.WorkspaceID, &sc.Name, &sc.TriggerType, &sc.TriggerConfig, &sc.Enabled,
		&lastRun, &sc.LastStatus, &sc.LastError, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		sc.LastRunAt = &lastRun.Time
	}
	return sc, nil
}

func (s *ScheduleStore) CreateSchedule(sc *domain.Schedule) error {
	now := time.Now()
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	sc.CreatedAt = now
	sc.UpdatedAt = now
	_, err := s.db.conn.Exec(
		`INSERT INTO schedules (id, workspace_id, name, trigger_type, trigger_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.WorkspaceID, sc.Name, sc.TriggerType, sc.TriggerConfig, sc.Enabled, sc.CreatedAt, sc.UpdatedAt,
	)
	return err
}

func (s *ScheduleStore) GetSchedule(id string) (*domain.Schedule, error) {
	sc, err := scanSchedule(s.db.conn.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return sc, err
}

func (s *ScheduleStore) ListSchedules() ([]domain.Schedule, error) {
	return s.list(`SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at ASC`)
}

// ListEnabledTriggered returns enabled schedules with a cron or file trigger.
func (s *ScheduleStore) ListEnabledTriggered() ([]domain.Schedule, error) {
	return s.list(`SELECT ` + scheduleColumns + ` FROM schedules
		WHERE enabled = 1 AND trigger_type IN ('cron', 'file_watch') ORDER BY created_at ASC`)
}

func (s *ScheduleStore) list(query string) ([]domain.Schedule, error) {
	rows, err := s.db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (s *ScheduleStore) UpdateSchedule(sc *domain.Schedule) error {
	sc.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE schedules SET name=?, trigger_type=?, trigger_config=?, enabled=?, updated_at=? WHERE id=?`,
		sc.Name, sc.TriggerType, sc.TriggerConfig, sc.Enabled, sc.UpdatedAt, sc.ID,
	)
	return err
}

func (s *ScheduleStore) UpdateScheduleStatus(id, status, errMsg string) error {
	now := time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE schedules SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		now, status, errMsg, now, id,
	)
	return err
}

func (s *ScheduleStore) DeleteSchedule(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	return err
}

// ── Run Logs ───────────────────────────────────────────────

func (s *ScheduleStore) CreateRunLog(l *domain.RunLog) error {
	l.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO run_logs (id, workspace_id, schedule_id, started_at, finished_at, status, output, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.WorkspaceID, l.ScheduleID, l.StartedAt, l.FinishedAt, l.Status, l.Output, l.Error,
	)
	return err
}

func (s *ScheduleStore) ListRunLogs(workspaceID string, limit int) ([]domain.RunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, workspace_id, schedule_id, started_at, finished_at, status, output, error
		 FROM run_logs WHERE workspace_id = ? ORDER BY started_at DESC LIMIT ?`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.RunLog
	for rows.Next() {
		var l domain.RunLog
		if err := rows.Scan(&l.ID, &l.WorkspaceID, &l.ScheduleID, &l.StartedAt, &l.FinishedAt, &l.Status, &l.Output, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
