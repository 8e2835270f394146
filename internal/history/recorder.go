package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// cancelGrace сколько Close ждёт сохранения после их отмены.
const cancelGrace = time.Second

// Saver то, что нужно Recorder от хранилища.
type Saver interface {
	Save(ctx context.Context, e Entry, ttl time.Duration) bool
}

type RecorderConfig struct {
	// MaxInFlight сколько сохранений может идти одновременно.
	MaxInFlight int64
	// Timeout ограничение на одно сохранение.
	Timeout time.Duration
	// TTL передаётся в Save; 0 означает TTL хранилища по умолчанию.
	TTL time.Duration
}

// Recorder пишет историю вне основного пути ответа: Record возвращается
// сразу, сохранение идёт в горутине. При переполнении запись отбрасывается.
type Recorder struct {
	saver   Saver
	sem     *semaphore.Weighted
	timeout time.Duration
	ttl     time.Duration
	logger  *slog.Logger

	// base родитель контекстов сохранений; отменяется, если Close не дождался их.
	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRecorder(saver Saver, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Recorder{
		base:    base,
		cancel:  cancel,
		saver:   saver,
		sem:     semaphore.NewWeighted(cfg.MaxInFlight),
		timeout: cfg.Timeout,
		ttl:     cfg.TTL,
		logger:  logger,
	}
}

// Record ставит сохранение в фон. false означает, что запись отброшена
// (рекордер закрыт или все слоты заняты).
func (r *Recorder) Record(e Entry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("history recorder closed, entry dropped", slog.String("task_id", e.ID))
		return false
	}
	if !r.sem.TryAcquire(1) {
		r.logger.Warn("history recorder saturated, entry dropped", slog.String("task_id", e.ID))
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)

		ctx, cancel := context.WithTimeout(r.base, r.timeout)
		defer cancel()

		if !r.saver.Save(ctx, e, r.ttl) {
			r.logger.Warn("history entry not recorded", slog.String("task_id", e.ID))
		}
	}()
	return true
}

// Close перестаёт принимать записи и ждёт текущие сохранения до ctx.
// Если ctx истёк раньше, оставшиеся сохранения отменяются и Close ждёт их
// ещё не дольше cancelGrace. После nil-ответа бэкенд можно закрывать.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
	}

	r.cancel()
	timeoutErr := errors.Join(errors.New("history recorder: in-flight saves cancelled"), ctx.Err())

	grace := time.NewTimer(cancelGrace)
	defer grace.Stop()
	select {
	case <-done:
		return timeoutErr
	case <-grace.C:
		return errors.Join(timeoutErr, errors.New("history recorder: saves ignored cancellation"))
	}
}
