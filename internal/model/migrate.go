package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра бронирования
// и навешивает частичные индексы на bookings.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Facility{},
		&FacilityUnit{},
		&Booking{},
	); err != nil {
		return err
	}
	return createBookingIndexes(db)
}

// Частичные индексы покрывают только активные брони: проверки пересечений
// и идемпотентности не платят за терминальные строки. Индекс очистки —
// без предиката, по нему ходит реконсилятор.
// И postgres, и sqlite (тесты) понимают WHERE в CREATE INDEX.
func createBookingIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uidx_bookings_active_idem
			ON bookings (idempotency_key)
			WHERE status IN ('scheduled', 'checked_in')`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_active_unit
			ON bookings (unit_id, starts_at, ends_at)
			WHERE status IN ('scheduled', 'checked_in')`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_active_facility
			ON bookings (facility_id, starts_at, ends_at)
			WHERE status IN ('scheduled', 'checked_in')`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_active_user
			ON bookings (booked_by, starts_at, ends_at)
			WHERE status IN ('scheduled', 'checked_in')`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_cleanup
			ON bookings (starts_at, status, ends_at)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
