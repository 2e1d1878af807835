package seed

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/facility-booking/internal/model"
)

// Демо-каталог фасилити кампуса. Идентификаторы фиксированы, чтобы
// повторный прогон обновлял записи, а не плодил дубликаты.
func catalog() ([]model.Facility, []model.FacilityUnit) {
	facilities := []model.Facility{
		{
			ID: 1, Name: "Study Halls", Category: "Academics",
			Description:   "Quiet pooled study space",
			TotalCapacity: 40, IsPooled: true,
			MinDurationMinutes: 30, MaxDurationMinutes: 240,
			OpenTime: "08:00", CloseTime: "22:00", Timezone: "UTC",
		},
		{
			ID: 2, Name: "Courts", Category: "Sports",
			Description:   "Outdoor badminton and tennis courts",
			TotalCapacity: 4, IsPooled: false,
			MinDurationMinutes: 30, MaxDurationMinutes: 120,
			OpenTime: "06:00", CloseTime: "22:00", Timezone: "UTC",
		},
		{
			ID: 3, Name: "Swimming Pool", Category: "Sports",
			Description:   "25m lap pool, lane booking",
			TotalCapacity: 8, IsPooled: true,
			MinDurationMinutes: 30, MaxDurationMinutes: 90,
			OpenTime: "06:00", CloseTime: "21:00", Timezone: "UTC",
		},
		{
			ID: 4, Name: "Gym Floor", Category: "Sports",
			Description:   "Free weights and cardio area",
			TotalCapacity: 20, IsPooled: true,
			MinDurationMinutes: 30, MaxDurationMinutes: 120,
			OpenTime: "06:00", CloseTime: "23:00", Timezone: "UTC",
		},
		{
			ID: 5, Name: "Main Auditorium", Category: model.CategoryEventSpace,
			Description:   "Stage, seating for 300, club events",
			TotalCapacity: 1, IsPooled: false,
			MinDurationMinutes: 60, MaxDurationMinutes: 720,
			OpenTime: "08:00", CloseTime: "23:00", Timezone: "UTC",
		},
	}

	units := []model.FacilityUnit{
		{ID: 10, FacilityID: 2, UnitName: "Court A", IsOperational: true},
		{ID: 11, FacilityID: 2, UnitName: "Court B", IsOperational: true},
		{ID: 12, FacilityID: 2, UnitName: "Court C", IsOperational: true},
		{ID: 13, FacilityID: 2, UnitName: "Court D", IsOperational: false},
		{ID: 50, FacilityID: 5, UnitName: "Main Stage", IsOperational: true},
	}

	return facilities, units
}

// Apply загружает демо-каталог. Повторные вызовы безопасны: строки
// обновляются по первичному ключу.
func Apply(ctx context.Context, gdb *gorm.DB) error {
	facilities, units := catalog()

	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}

		for i := range facilities {
			if err := tx.Clauses(upsert).Create(&facilities[i]).Error; err != nil {
				return fmt.Errorf("seed facility %q: %w", facilities[i].Name, err)
			}
		}
		for i := range units {
			if err := tx.Clauses(upsert).Create(&units[i]).Error; err != nil {
				return fmt.Errorf("seed unit %q: %w", units[i].UnitName, err)
			}
		}
		return nil
	})
}
