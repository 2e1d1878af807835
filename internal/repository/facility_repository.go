package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Leganyst/facility-booking/internal/apperror"
	"github.com/Leganyst/facility-booking/internal/db"
	"github.com/Leganyst/facility-booking/internal/model"
)

type FacilityRepository interface {
	// Репозиторий, привязанный к открытой транзакции.
	WithTx(tx *gorm.DB) FacilityRepository
	// Фасилити по ID.
	GetByID(ctx context.Context, id uint) (*model.Facility, error)
	// Фасилити по ID под FOR UPDATE. Вызывается первой в любой
	// пишущей транзакции — это глобальный порядок замков.
	LockByID(ctx context.Context, id uint) (*model.Facility, error)
	// Все юниты фасилити (включая выведенные из эксплуатации).
	ListUnits(ctx context.Context, facilityID uint) ([]model.FacilityUnit, error)
	// Только операционные юниты.
	ListOperationalUnits(ctx context.Context, facilityID uint) ([]model.FacilityUnit, error)
	// Юнит по ID под FOR UPDATE. Берётся строго после замка фасилити.
	LockUnitByID(ctx context.Context, unitID uint) (*model.FacilityUnit, error)
}

// Реализация на GORM.
type GormFacilityRepository struct {
	db *gorm.DB
}

func NewGormFacilityRepository(gdb *gorm.DB) *GormFacilityRepository {
	return &GormFacilityRepository{db: gdb}
}

func (r *GormFacilityRepository) WithTx(tx *gorm.DB) FacilityRepository {
	return &GormFacilityRepository{db: tx}
}

func (r *GormFacilityRepository) GetByID(ctx context.Context, id uint) (*model.Facility, error) {
	var f model.Facility
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("facility %d not found", id)
		}
		return nil, err
	}
	return &f, nil
}

func (r *GormFacilityRepository) LockByID(ctx context.Context, id uint) (*model.Facility, error) {
	var f model.Facility
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("facility %d not found", id)
		}
		return nil, err
	}
	return &f, nil
}

func (r *GormFacilityRepository) ListUnits(ctx context.Context, facilityID uint) ([]model.FacilityUnit, error) {
	var units []model.FacilityUnit
	err := r.db.WithContext(ctx).
		Where("facility_id = ?", facilityID).
		Order("unit_name ASC").
		Find(&units).Error
	return units, err
}

func (r *GormFacilityRepository) ListOperationalUnits(ctx context.Context, facilityID uint) ([]model.FacilityUnit, error) {
	var units []model.FacilityUnit
	err := r.db.WithContext(ctx).
		Where("facility_id = ? AND is_operational = ?", facilityID, true).
		Order("unit_name ASC").
		Find(&units).Error
	return units, err
}

func (r *GormFacilityRepository) LockUnitByID(ctx context.Context, unitID uint) (*model.FacilityUnit, error) {
	var u model.FacilityUnit
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&u, "id = ?", unitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("facility unit %d not found", unitID)
		}
		return nil, err
	}
	return &u, nil
}
