package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Schedule Service: triggered headless runs
// ─────────────────────────────────────────────────────────────

// ScheduleService runs stored workspaces on cron expressions or when a
// watched file changes.
type ScheduleService struct {
	store      *storage.ScheduleStore
	workspaces *WorkspaceService
	runs       *RunService
	emitter    EventEmitter

	// watcher / cron lifecycle
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron

	// FileDebounce coalesces bursts of writes to a watched file.
	FileDebounce time.Duration
}

func NewScheduleService(
	store *storage.ScheduleStore,
	workspaces *WorkspaceService,
	runs *RunService,
	emitter EventEmitter,
) *ScheduleService {
	return &ScheduleService{
		store:        store,
		workspaces:   workspaces,
		runs:         runs,
		emitter:      emitter,
		FileDebounce: 500 * time.Millisecond,
	}
}

// ── Schedule CRUD ──────────────────────────────────────────

type CreateScheduleInput struct {
	Workspace     string `json:"workspace"` // id or name
	Name          string `json:"name"`
	TriggerType   string `json:"triggerType"`
	TriggerConfig string `json:"triggerConfig"`
	Enabled       bool   `json:"enabled"`
}

func validateTrigger(triggerType, config string) error {
	switch triggerType {
	case domain.TriggerManual:
		return nil
	case domain.TriggerCron:
		if _, err := cron.ParseStandard(config); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", config, err)
		}
		return nil
	case domain.TriggerFileWatch:
		if config == "" {
			return fmt.Errorf("file_watch trigger needs a path")
		}
		return nil
	}
	return fmt.Errorf("unknown trigger type %q", triggerType)
}

func (s *ScheduleService) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*domain.Schedule, error) {
	rec, err := s.workspaces.Resolve(input.Workspace)
	if err != nil {
		return nil, err
	}
	if input.TriggerType == "" {
		input.TriggerType = domain.TriggerManual
	}
	if err := validateTrigger(input.TriggerType, input.TriggerConfig); err != nil {
		return nil, err
	}
	sc := &domain.Schedule{
		WorkspaceID:   rec.ID,
		Name:          input.Name,
		TriggerType:   input.TriggerType,
		TriggerConfig: input.TriggerConfig,
		Enabled:       input.Enabled,
	}
	if sc.Name == "" {
		sc.Name = rec.Name
	}
	if err := s.store.CreateSchedule(sc); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	s.RestartWatchers(ctx)
	return sc, nil
}

func (s *ScheduleService) GetSchedule(id string) (*domain.Schedule, error) {
	return s.store.GetSchedule(id)
}

func (s *ScheduleService) ListSchedules() ([]domain.Schedule, error) {
	return s.store.ListSchedules()
}

func (s *ScheduleService) UpdateSchedule(ctx context.Context, id string, input CreateScheduleInput) error {
	sc, err := s.store.GetSchedule(id)
	if err != nil {
		return err
	}
	if input.TriggerType == "" {
		input.TriggerType = domain.TriggerManual
	}
	if err := validateTrigger(input.TriggerType, input.TriggerConfig); err != nil {
		return err
	}
	if input.Name != "" {
		sc.Name = input.Name
	}
	sc.TriggerType = input.TriggerType
	sc.TriggerConfig = input.TriggerConfig
	sc.Enabled = input.Enabled

	if err := s.store.UpdateSchedule(sc); err != nil {
		return err
	}
	s.RestartWatchers(ctx)
	return nil
}

func (s *ScheduleService) DeleteSchedule(ctx context.Context, id string) error {
	err := s.store.DeleteSchedule(id)
	if err == nil {
		s.RestartWatchers(ctx)
	}
	return err
}

// ── Run ────────────────────────────────────────────────────

// RunSchedule executes the schedule's workspace synchronously and records
// the outcome on the schedule.
func (s *ScheduleService) RunSchedule(ctx context.Context, id string) (*RunInfo, error) {
	sc, err := s.store.GetSchedule(id)
	if err != nil {
		return nil, err
	}

	s.store.UpdateScheduleStatus(id, "running", "")

	info, runErr := s.runs.Execute(ctx, sc.WorkspaceID, sc.ID)

	status, errMsg := "error", ""
	if info != nil {
		status = info.Status
	}
	if runErr != nil {
		errMsg = runErr.Error()
	}
	s.store.UpdateScheduleStatus(id, status, errMsg)

	s.emitter.Emit(ctx, EventScheduleCompleted, map[string]string{
		"scheduleId":  id,
		"workspaceId": sc.WorkspaceID,
		"status":      status,
	})
	return info, runErr
}

// ── Watchers (cron + file_watch) ──────────────────────────

// RestartWatchers tears down the current watcher/cron and rebuilds them from scratch.
func (s *ScheduleService) RestartWatchers(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchers()

	schedules, err := s.store.ListEnabledTriggered()
	if err != nil {
		log.Printf("schedule watcher: failed to list schedules: %v", err)
		return
	}
	bg := context.WithoutCancel(ctx)

	// ── Cron schedules ──
	c := cron.New()
	cronCount := 0
	for _, sc := range schedules {
		if sc.TriggerType != domain.TriggerCron {
			continue
		}
		sid := sc.ID
		_, err := c.AddFunc(sc.TriggerConfig, func() {
			log.Printf("schedule cron: running schedule %s", sid)
			if _, err := s.RunSchedule(bg, sid); err != nil {
				log.Printf("schedule cron: schedule %s failed: %v", sid, err)
			}
		})
		if err != nil {
			log.Printf("schedule cron: invalid expression %q for schedule %s: %v", sc.TriggerConfig, sid, err)
			continue
		}
		cronCount++
	}
	if cronCount > 0 {
		c.Start()
		s.cronSched = c
		log.Printf("schedule cron: scheduled %d schedule(s)", cronCount)
	}

	// ── File watchers ──
	pathToSchedule := make(map[string]string)
	for _, sc := range schedules {
		if sc.TriggerType != domain.TriggerFileWatch {
			continue
		}
		absPath, err := filepath.Abs(sc.TriggerConfig)
		if err != nil {
			log.Printf("schedule watcher: bad path %q: %v", sc.TriggerConfig, err)
			continue
		}
		pathToSchedule[absPath] = sc.ID
	}
	if len(pathToSchedule) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("schedule watcher: failed to create watcher: %v", err)
		return
	}
	s.watcher = watcher

	watchedDirs := make(map[string]bool)
	for absPath := range pathToSchedule {
		dir := filepath.Dir(absPath)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Printf("schedule watcher: failed to watch dir %q: %v", dir, err)
			continue
		}
		watchedDirs[dir] = true
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	debounce := s.FileDebounce

	go func() {
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				sid, ok := pathToSchedule[absPath]
				if !ok {
					continue
				}
				if t, exists := timers[sid]; exists {
					t.Stop()
				}
				timers[sid] = time.AfterFunc(debounce, func() {
					log.Printf("schedule watcher: file changed %q, running schedule %s", absPath, sid)
					if _, err := s.RunSchedule(bg, sid); err != nil {
						log.Printf("schedule watcher: run failed for schedule %s: %v", sid, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("schedule watcher: error: %v", err)
			}
		}
	}()

	log.Printf("schedule watcher: watching %d file(s)", len(pathToSchedule))
}

// WaitRunning blocks until all running workspaces finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ScheduleService) WaitRunning(ctx context.Context) {
	s.runs.WaitRunning(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ScheduleService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchers()
}

func (s *ScheduleService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
