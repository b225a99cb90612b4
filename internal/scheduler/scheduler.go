package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/metrics"
)

// ErrTaskNotFound is returned by RunNow for an unknown task name
var ErrTaskNotFound = errors.New("task not found")

const (
	taskTimeout  = 30 * time.Second
	tickInterval = time.Second
)

// TaskFunc represents a scheduled task function
type TaskFunc func(ctx context.Context) error

// Task represents a scheduled task
type Task struct {
	Name       string
	Interval   time.Duration
	Func       TaskFunc
	LastRun    time.Time
	NextRun    time.Time
	Running    bool
	Enabled    bool
	LastStatus string
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	tasks   map[string]*Task
	mutex   sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[string]*Task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddTask adds a new scheduled task. A task added with runNow set is due on
// the first tick instead of after one interval.
func (s *Scheduler) AddTask(name string, interval time.Duration, fn TaskFunc, runNow bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	next := time.Now().Add(interval)
	if runNow {
		next = time.Now()
	}
	s.tasks[name] = &Task{
		Name:     name,
		Interval: interval,
		Func:     fn,
		NextRun:  next,
		Enabled:  true,
	}
}

// RemoveTask removes a scheduled task
func (s *Scheduler) RemoveTask(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tasks, name)
}

// RunNow runs a task immediately and returns its error
func (s *Scheduler) RunNow(name string) error {
	s.mutex.RLock()
	task, ok := s.tasks[name]
	s.mutex.RUnlock()

	if !ok {
		return ErrTaskNotFound
	}

	return s.runTask(task)
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return
	}
	s.running = true
	s.mutex.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		s.checkTasks()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkTasks()
			}
		}
	}()

	logging.L().Info().Msg("scheduler started")
}

// Stop cancels running tasks and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()

	s.mutex.Lock()
	s.running = false
	s.mutex.Unlock()
	logging.L().Info().Msg("scheduler stopped")
}

func (s *Scheduler) checkTasks() {
	s.mutex.Lock()
	now := time.Now()
	tasksToRun := make([]*Task, 0)

	for _, task := range s.tasks {
		if task.Enabled && !task.Running && !now.Before(task.NextRun) {
			task.Running = true
			tasksToRun = append(tasksToRun, task)
		}
	}
	s.mutex.Unlock()

	for _, task := range tasksToRun {
		s.wg.Add(1)
		go func(t *Task) {
			defer s.wg.Done()
			s.execute(t)
		}(task)
	}
}

func (s *Scheduler) runTask(task *Task) error {
	s.mutex.Lock()
	task.Running = true
	s.mutex.Unlock()

	return s.execute(task)
}

// execute runs a task already marked as running
func (s *Scheduler) execute(task *Task) error {
	ctx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	logger := logging.L().With().Str("task", task.Name).Logger()
	logger.Debug().Msg("running task")
	start := time.Now()

	err := task.Func(ctx)

	s.mutex.Lock()
	task.Running = false
	task.LastRun = time.Now()
	task.NextRun = task.LastRun.Add(task.Interval)
	if err != nil {
		task.LastStatus = err.Error()
	} else {
		task.LastStatus = "ok"
	}
	s.mutex.Unlock()

	if err != nil {
		logger.Warn().Err(err).Msg("task failed")
		return err
	}
	logger.Debug().Dur("took", time.Since(start)).Msg("task completed")
	return nil
}

// GetTasks returns information about all tasks, sorted by name
func (s *Scheduler) GetTasks() []TaskInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, TaskInfo{
			Name:       task.Name,
			Interval:   task.Interval.String(),
			LastRun:    task.LastRun,
			NextRun:    task.NextRun,
			Running:    task.Running,
			Enabled:    task.Enabled,
			LastStatus: task.LastStatus,
		})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
	return tasks
}

// TaskInfo holds information about a task
type TaskInfo struct {
	Name       string    `json:"name"`
	Interval   string    `json:"interval"`
	LastRun    time.Time `json:"lastRun"`
	NextRun    time.Time `json:"nextRun"`
	Running    bool      `json:"running"`
	Enabled    bool      `json:"enabled"`
	LastStatus string    `json:"lastStatus,omitempty"`
}

// UpstreamProbeTaskName is the name the Open Library probe is registered under
const UpstreamProbeTaskName = "openlibrary_probe"

// Pinger checks that an upstream service answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamProbeTask creates the task that keeps the openlibrary_up gauge current
func UpstreamProbeTask(p Pinger) TaskFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			metrics.UpstreamUp.Set(0)
			return err
		}
		metrics.UpstreamUp.Set(1)
		return nil
	}
}
