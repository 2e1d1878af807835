package model

import "time"

// Категория "Event Space" видна только клубам — см. проекцию доступности.
const CategoryEventSpace = "Event Space"

// facilities
type Facility struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Category    string `gorm:"type:varchar(64);not null;index" json:"category"`
	Description string `gorm:"type:text" json:"description"`

	TotalCapacity int  `gorm:"not null" json:"total_capacity"`
	IsPooled      bool `gorm:"not null;default:false" json:"is_pooled"`

	// Политика бронирования.
	MinDurationMinutes int    `gorm:"not null;default:30" json:"min_duration_minutes"`
	MaxDurationMinutes int    `gorm:"not null;default:120" json:"max_duration_minutes"`
	OpenTime           string `gorm:"type:varchar(5);not null;default:'07:00'" json:"open_time"`
	CloseTime          string `gorm:"type:varchar(5);not null;default:'23:00'" json:"close_time"`
	// Справочная таймзона; сравнение часов работы идёт по UTC-компонентам инстантов.
	Timezone string `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	// Навигационные поля (опционально, но удобно для Preload).
	Units []FacilityUnit `gorm:"foreignKey:FacilityID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// facility_units
type FacilityUnit struct {
	ID uint `gorm:"primaryKey" json:"id"`

	FacilityID uint   `gorm:"not null;index" json:"facility_id"`
	UnitName   string `gorm:"type:varchar(255);not null" json:"unit_name"`

	// Неоперационные юниты невидимы для бронирования и расписания.
	IsOperational bool `gorm:"not null;default:true" json:"is_operational"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Facility *Facility `gorm:"foreignKey:FacilityID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
