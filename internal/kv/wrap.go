package kv

import (
	"context"
	"log/slog"
	"time"

	"chathistory/internal/retry"
)

// DefaultPrefix пространство имён ключей истории.
const DefaultPrefix = "kv:history:"

type prefixed struct {
	next   Backend
	prefix string
}

// WithPrefix добавляет prefix ко всем ключам next.
func WithPrefix(next Backend, prefix string) Backend {
	if prefix == "" {
		return next
	}
	return &prefixed{next: next, prefix: prefix}
}

func (p *prefixed) Read(ctx context.Context, key string) (string, bool, error) {
	return p.next.Read(ctx, p.prefix+key)
}

func (p *prefixed) Write(ctx context.Context, key, value string, ttl time.Duration) error {
	return p.next.Write(ctx, p.prefix+key, value, ttl)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	d, ok := p.next.(Deleter)
	if !ok {
		return nil
	}
	return d.Delete(ctx, p.prefix+key)
}

type retrying struct {
	next   Backend
	policy retry.Policy
	logger *slog.Logger
}

// WithRetry повторяет неудачные Read/Write next по policy.
// Отсутствие ключа ошибкой не считается и не повторяется.
func WithRetry(next Backend, policy retry.Policy, logger *slog.Logger) Backend {
	return &retrying{next: next, policy: policy, logger: logger}
}

func (r *retrying) Read(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := retry.Do(ctx, r.policy, r.logger, "kv.read", func(ctx context.Context) error {
		var err error
		value, found, err = r.next.Read(ctx, key)
		return err
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (r *retrying) Write(ctx context.Context, key, value string, ttl time.Duration) error {
	return retry.Do(ctx, r.policy, r.logger, "kv.write", func(ctx context.Context) error {
		return r.next.Write(ctx, key, value, ttl)
	})
}

func (r *retrying) Delete(ctx context.Context, key string) error {
	d, ok := r.next.(Deleter)
	if !ok {
		return nil
	}
	return d.Delete(ctx, key)
}
