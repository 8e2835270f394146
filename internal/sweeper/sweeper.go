// Package sweeper по расписанию вычищает истёкшие ключи из бэкендов,
// у которых нет собственного механизма истечения (память, SQLite).
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chathistory/internal/kv"

	"github.com/robfig/cron/v3"
)

type target struct {
	name    string
	sweeper kv.Sweeper
}

type Sweeper struct {
	cron    *cron.Cron
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration

	mu      sync.Mutex
	targets []target

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithTimeout ограничивает один проход по всем целям.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.timeout = d }
}

func New(logger *slog.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger,
		now:     time.Now,
		timeout: time.Minute,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) Add(name string, sw kv.Sweeper) {
	s.mu.Lock()
	s.targets = append(s.targets, target{name: name, sweeper: sw})
	s.mu.Unlock()
}

// Start планирует RunOnce по cron-выражению (поддерживаются "@every 10m" и т.п.).
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() {
		s.RunOnce(s.ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("sweeper started", slog.String("schedule", schedule))
	return nil
}

// Stop ждёт завершения текущего прохода.
func (s *Sweeper) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// RunOnce один проход по всем целям. Возвращает общее число удалённых ключей.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	targets := append([]target(nil), s.targets...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	total := 0
	for _, t := range targets {
		started := time.Now()
		n, err := t.sweeper.ClearExpired(ctx, s.now())
		if err != nil {
			s.logger.Error("sweep failed",
				slog.String("target", t.name),
				slog.String("error", err.Error()))
			continue
		}
		total += n
		s.logger.Debug("sweep done",
			slog.String("target", t.name),
			slog.Int("removed", n),
			slog.Duration("duration", time.Since(started)))
	}
	return total
}
