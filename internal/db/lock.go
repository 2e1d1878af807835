package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdvisoryLocker — неблокирующий межпроцессный замок по целочисленному ключу.
// Реконсилятор берёт его перед циклом очистки, чтобы в кластере работал
// ровно один экземпляр.
type AdvisoryLocker interface {
	TryLock(ctx context.Context, key int64) (bool, error)
	Unlock(ctx context.Context, key int64) error
}

// PgAdvisoryLocker — сессионный advisory-замок Postgres.
type PgAdvisoryLocker struct {
	db *gorm.DB
}

func NewPgAdvisoryLocker(db *gorm.DB) *PgAdvisoryLocker {
	return &PgAdvisoryLocker{db: db}
}

func (l *PgAdvisoryLocker) TryLock(ctx context.Context, key int64) (bool, error) {
	var acquired bool
	err := l.db.WithContext(ctx).
		Raw("SELECT pg_try_advisory_lock(?)", key).
		Scan(&acquired).Error
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func (l *PgAdvisoryLocker) Unlock(ctx context.Context, key int64) error {
	return l.db.WithContext(ctx).
		Exec("SELECT pg_advisory_unlock(?)", key).Error
}

// ForUpdate навешивает SELECT ... FOR UPDATE. У sqlite (тестовый диалект)
// построчных замков нет — вся база блокируется на запись целиком, так что
// клауза там опускается.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
