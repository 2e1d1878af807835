package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/facility-booking/internal/apperror"
	"github.com/Leganyst/facility-booking/internal/db"
	"github.com/Leganyst/facility-booking/internal/model"
)

// Кандидат на обработку реконсилятором.
type CleanupCandidate struct {
	ID         uuid.UUID
	FacilityID uint
}

type BookingRepository interface {
	// Репозиторий, привязанный к открытой транзакции.
	WithTx(tx *gorm.DB) BookingRepository

	// Вставить новую бронь. Нарушение активного индекса идемпотентности
	// приходит как gorm.ErrDuplicatedKey.
	Create(ctx context.Context, b *model.Booking) error
	// Бронь по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Бронь по ID под FOR UPDATE. Берётся после замка фасилити.
	LockByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Сменить статус.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error
	// Завершить бронь с перезаписью конца (чек-аут).
	Complete(ctx context.Context, id uuid.UUID, endsAt time.Time) error

	// Активные брони юнита, пересекающие [start, end).
	ActiveOverlapsOnUnit(ctx context.Context, unitID uint, start, end time.Time) ([]model.Booking, error)
	// Активные брони фасилити, пересекающие [start, end).
	ActiveOverlapsOnFacility(ctx context.Context, facilityID uint, start, end time.Time) ([]model.Booking, error)
	// Количество активных броней фасилити, пересекающих окно (пуловая ёмкость).
	CountActiveOverlapsOnFacility(ctx context.Context, facilityID uint, start, end time.Time) (int64, error)
	// Активные full_day-брони фасилити, пересекающие окно.
	ActiveFullDayOnFacility(ctx context.Context, facilityID uint, start, end time.Time) ([]model.Booking, error)
	// Активные брони пользователя, пересекающие окно.
	ActiveOverlapsForUser(ctx context.Context, bookedBy string, start, end time.Time) ([]model.Booking, error)

	// Все брони пользователя (с фасилити и юнитом), новые сверху.
	ListByUser(ctx context.Context, bookedBy string) ([]model.Booking, error)

	// Запланированные брони, чьё начало ушло за cutoff (кандидаты в no-show).
	ListNoShows(ctx context.Context, cutoff time.Time) ([]CleanupCandidate, error)
	// Активные сессии, чей конец наступил (кандидаты на завершение).
	ListExpired(ctx context.Context, now time.Time) ([]CleanupCandidate, error)
	// Есть ли бронь, стартовавшая в (from, to] — грубый сигнал "что-то началось".
	AnyStartedBetween(ctx context.Context, from, to time.Time) (bool, error)
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(gdb *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: gdb}
}

func (r *GormBookingRepository) WithTx(tx *gorm.DB) BookingRepository {
	return &GormBookingRepository{db: tx}
}

func (r *GormBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("booking %s not found", id)
		}
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("booking %s not found", id)
		}
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

func (r *GormBookingRepository) Complete(ctx context.Context, id uuid.UUID, endsAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  model.BookingStatusCompleted,
			"ends_at": endsAt,
		}).
		Error
}

// Полуоткрытые интервалы [Start, End) пересекаются,
// если a.Start < b.End && b.Start < a.End.
func activeOverlapQuery(gdb *gorm.DB, start, end time.Time) *gorm.DB {
	return gdb.
		Where("status IN ?", model.ActiveStatuses).
		Where("starts_at < ? AND ends_at > ?", end, start)
}

func (r *GormBookingRepository) ActiveOverlapsOnUnit(ctx context.Context, unitID uint, start, end time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	q := activeOverlapQuery(r.db.WithContext(ctx).Model(&model.Booking{}), start, end).
		Where("unit_id = ?", unitID)
	if err := q.Order("starts_at ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ActiveOverlapsOnFacility(ctx context.Context, facilityID uint, start, end time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	q := activeOverlapQuery(r.db.WithContext(ctx).Model(&model.Booking{}), start, end).
		Where("facility_id = ?", facilityID)
	if err := q.Order("starts_at ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) CountActiveOverlapsOnFacility(ctx context.Context, facilityID uint, start, end time.Time) (int64, error) {
	var total int64
	q := activeOverlapQuery(r.db.WithContext(ctx).Model(&model.Booking{}), start, end).
		Where("facility_id = ?", facilityID)
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *GormBookingRepository) ActiveFullDayOnFacility(ctx context.Context, facilityID uint, start, end time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	q := activeOverlapQuery(r.db.WithContext(ctx).Model(&model.Booking{}), start, end).
		Where("facility_id = ?", facilityID).
		Where("booking_type = ?", model.BookingTypeFullDay)
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ActiveOverlapsForUser(ctx context.Context, bookedBy string, start, end time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	q := activeOverlapQuery(r.db.WithContext(ctx).Model(&model.Booking{}), start, end).
		Where("booked_by = ?", bookedBy)
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ListByUser(ctx context.Context, bookedBy string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Preload("Facility").
		Preload("Unit").
		Where("booked_by = ?", bookedBy).
		Order("starts_at DESC").
		Find(&bookings).Error
	return bookings, err
}

func (r *GormBookingRepository) ListNoShows(ctx context.Context, cutoff time.Time) ([]CleanupCandidate, error) {
	var out []CleanupCandidate
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Select("id", "facility_id").
		Where("status = ?", model.BookingStatusScheduled).
		Where("starts_at < ?", cutoff).
		Scan(&out).Error
	return out, err
}

func (r *GormBookingRepository) ListExpired(ctx context.Context, now time.Time) ([]CleanupCandidate, error) {
	var out []CleanupCandidate
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Select("id", "facility_id").
		Where("status = ?", model.BookingStatusCheckedIn).
		Where("ends_at <= ?", now).
		Scan(&out).Error
	return out, err
}

func (r *GormBookingRepository) AnyStartedBetween(ctx context.Context, from, to time.Time) (bool, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("status = ?", model.BookingStatusScheduled).
		Where("starts_at > ? AND starts_at <= ?", from, to).
		Count(&total).Error
	if err != nil {
		return false, err
	}
	return total > 0, nil
}
