package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusCheckedIn BookingStatus = "checked_in"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusReleased  BookingStatus = "released"
)

// Активная бронь удерживает ресурс; терминальные статусы его освобождают.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusScheduled || s == BookingStatusCheckedIn
}

// ActiveStatuses — для условий вида `status IN ?`.
var ActiveStatuses = []BookingStatus{BookingStatusScheduled, BookingStatusCheckedIn}

type BookingType string

const (
	BookingTypeTimeBased BookingType = "time_based"
	BookingTypeFullDay   BookingType = "full_day"
)

type UserType string

const (
	UserTypeIndividual UserType = "individual"
	UserTypeClub       UserType = "club"
)

// bookings
type Booking struct {
	// ID генерируем в коде, а не в БД — sqlite в тестах не умеет gen_random_uuid().
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	FacilityID uint  `gorm:"not null;index" json:"facility_id"`
	UnitID     *uint `gorm:"index" json:"unit_id"` // NULL тогда и только тогда, когда фасилити пулевая

	BookedBy string   `gorm:"type:varchar(255);not null;index" json:"booked_by"`
	UserType UserType `gorm:"type:varchar(16);not null" json:"user_type"`
	ClubName string   `gorm:"type:varchar(255)" json:"club_name,omitempty"`

	BookingType BookingType `gorm:"type:varchar(16);not null" json:"booking_type"`

	StartsAt time.Time `gorm:"type:timestamp with time zone;not null" json:"starts_at"`
	EndsAt   time.Time `gorm:"type:timestamp with time zone;not null" json:"ends_at"`

	Status BookingStatus `gorm:"type:varchar(16);not null;index" json:"status"`

	IdempotencyKey string `gorm:"type:varchar(255);not null" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Facility *Facility     `gorm:"foreignKey:FacilityID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Unit     *FacilityUnit `gorm:"foreignKey:UnitID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}
