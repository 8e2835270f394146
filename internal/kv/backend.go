// Package kv описывает минимальный контракт ключ-значение с TTL, поверх
// которого строится история, и его реализации: память, SQLite и Redis.
//
// Контракт беден: нет CAS, нет транзакций между ключами, нет
// вторичных индексов. Отсутствие ключа и истёкший ключ неразличимы.
package kv

import (
	"context"
	"time"
)

// Backend асинхронное хранилище строк по строковым ключам.
type Backend interface {
	// Read возвращает значение и true, либо "", false если ключа нет или он истёк.
	// Ошибка означает сбой самого хранилища.
	Read(ctx context.Context, key string) (string, bool, error)

	// Write безусловно перезаписывает ключ. ttl <= 0 означает "без срока".
	Write(ctx context.Context, key, value string, ttl time.Duration) error
}

// Deleter реализуют бэкенды, умеющие удалять ключ явно.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Sweeper реализуют бэкенды без собственного механизма истечения:
// ClearExpired физически удаляет ключи, чей TTL прошёл к моменту now.
type Sweeper interface {
	ClearExpired(ctx context.Context, now time.Time) (int, error)
}
