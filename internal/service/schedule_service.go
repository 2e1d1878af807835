package service

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/Leganyst/facility-booking/internal/model"
	"github.com/Leganyst/facility-booking/internal/repository"
)

// ScheduleService отдаёт сетку броней фасилити на календарный день.
type ScheduleService struct {
	facilities repository.FacilityRepository
	bookings   repository.BookingRepository
}

func NewScheduleService(facilities repository.FacilityRepository, bookings repository.BookingRepository) *ScheduleService {
	return &ScheduleService{facilities: facilities, bookings: bookings}
}

type UnitSchedule struct {
	UnitID   uint            `json:"unit_id"`
	UnitName string          `json:"unit_name"`
	Bookings []model.Booking `json:"bookings"`
}

type DaySchedule struct {
	Date  string         `json:"date"`
	Units []UnitSchedule `json:"units"`
}

// GetScheduleForDate собирает брони дня по операционным юнитам фасилити.
// Юнит попадает в ответ даже с пустым списком; выведенные из строя юниты
// не показываются. Пересечение с днём считается по полуоткрытому окну.
func (s *ScheduleService) GetScheduleForDate(ctx context.Context, facilityID uint, date datatypes.Date) (*DaySchedule, error) {
	if _, err := s.facilities.GetByID(ctx, facilityID); err != nil {
		return nil, err
	}

	day := time.Time(date).UTC()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	units, err := s.facilities.ListOperationalUnits(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.bookings.ActiveOverlapsOnFacility(ctx, facilityID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	byUnit := make(map[uint][]model.Booking, len(units))
	for _, b := range bookings {
		if b.UnitID == nil {
			continue
		}
		byUnit[*b.UnitID] = append(byUnit[*b.UnitID], b)
	}

	out := &DaySchedule{
		Date:  dayStart.Format("2006-01-02"),
		Units: make([]UnitSchedule, 0, len(units)),
	}
	for _, u := range units {
		rows := byUnit[u.ID]
		if rows == nil {
			rows = []model.Booking{}
		}
		out.Units = append(out.Units, UnitSchedule{
			UnitID:   u.ID,
			UnitName: u.UnitName,
			Bookings: rows,
		})
	}
	return out, nil
}
