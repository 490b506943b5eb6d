package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"immo-backoffice/internal/config"
)

// JobFunc is the body of a scheduled job
type JobFunc func(ctx context.Context) error

type job struct {
	name string
	spec string
	run  JobFunc
	id   cron.EntryID
}

// Scheduler runs maintenance jobs (search reindex, dashboard, cleanup) on cron specs
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
	enabled bool

	mu        sync.Mutex
	jobs      map[string]*job
	isRunning bool
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg config.SchedulerConfig, loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}

	timeout := cfg.GetJobTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: timeout,
		enabled: cfg.Enabled,
		jobs:    make(map[string]*job),
	}
}

// Register adds a job. An empty spec registers the job for manual runs only.
func (s *Scheduler) Register(name, spec string, run JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{name: name, spec: spec, run: run}
	if spec != "" {
		id, err := s.cron.AddFunc(spec, func() {
			if err := s.execute(context.Background(), j); err != nil {
				s.logger.Error("scheduled job failed", zap.String("job", j.name), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("job %q: invalid spec %q: %w", name, spec, err)
		}
		j.id = id
	}
	s.jobs[name] = j
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	if !s.enabled {
		s.logger.Info("scheduler disabled in configuration")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.cron.Start()
	s.isRunning = true

	for _, name := range s.jobNames() {
		j := s.jobs[name]
		if j.spec != "" {
			s.logger.Info("job scheduled", zap.String("job", j.name), zap.String("spec", j.spec))
		}
	}
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.isRunning
	s.isRunning = false
	s.mu.Unlock()

	if running {
		<-s.cron.Stop().Done()
		s.logger.Info("scheduler stopped")
	}
}

// RunNow executes a registered job immediately (for manual trigger)
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.execute(ctx, j)
}

// Jobs lists the registered job names in alphabetical order
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobNames()
}

func (s *Scheduler) jobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("job started", zap.String("job", j.name))
	if err := j.run(ctx); err != nil {
		return err
	}
	s.logger.Info("job completed", zap.String("job", j.name), zap.Duration("duration", time.Since(start)))
	return nil
}

// cronLogger adapts zap to cron's logger interface
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
