package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/facility-booking/internal/apperror"
	"github.com/Leganyst/facility-booking/internal/clock"
	"github.com/Leganyst/facility-booking/internal/model"
)

// AvailabilityService строит живую сводку занятости по всем фасилити.
// Вся проекция считается одним SQL-запросом: снимок согласован по чтению
// и не собирается из N+1 обращений.
type AvailabilityService struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewAvailabilityService(gdb *gorm.DB, clk clock.Clock) *AvailabilityService {
	return &AvailabilityService{db: gdb, clock: clk}
}

// ActiveOccupant — кто прямо сейчас занимает фасилити.
type ActiveOccupant struct {
	BookedBy    string    `json:"booked_by"`
	UserType    string    `json:"user_type"`
	ClubName    string    `json:"club_name,omitempty"`
	BookingType string    `json:"booking_type"`
	UnitName    string    `json:"unit_name,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// MyActiveBooking — ближайшая активная бронь вызывающего на фасилити.
type MyActiveBooking struct {
	ID          uuid.UUID `json:"id"`
	UnitID      *uint     `json:"unit_id,omitempty"`
	BookingType string    `json:"booking_type"`
	Status      string    `json:"status"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// AssetView — карточка фасилити для табло занятости.
type AssetView struct {
	ID                 uint   `json:"id"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	Description        string `json:"description,omitempty"`
	TotalCapacity      int    `json:"total_capacity"`
	IsPooled           bool   `json:"is_pooled"`
	MinDurationMinutes int    `json:"min_duration_minutes"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
	OpenTime           string `json:"open_time"`
	CloseTime          string `json:"close_time"`
	Timezone           string `json:"timezone"`

	CurrentUsage      int              `json:"current_usage"`
	AvailableCapacity int              `json:"available_capacity"`
	CurrentStatus     string           `json:"current_status"`
	MyActiveBooking   *MyActiveBooking `json:"my_active_booking"`
	ActiveOccupants   []ActiveOccupant `json:"active_occupants"`
}

// Статусы карточки.
const (
	AssetStatusAvailable = "available"
	AssetStatusInUse     = "in_use"
)

// Строка из Raw-запроса: JSON-агрегаты приходят текстом и разбираются
// уже в Go.
type assetRow struct {
	ID                 uint    `gorm:"column:id"`
	Name               string  `gorm:"column:name"`
	Category           string  `gorm:"column:category"`
	Description        string  `gorm:"column:description"`
	TotalCapacity      int     `gorm:"column:total_capacity"`
	IsPooled           bool    `gorm:"column:is_pooled"`
	MinDurationMinutes int     `gorm:"column:min_duration_minutes"`
	MaxDurationMinutes int     `gorm:"column:max_duration_minutes"`
	OpenTime           string  `gorm:"column:open_time"`
	CloseTime          string  `gorm:"column:close_time"`
	Timezone           string  `gorm:"column:timezone"`
	CurrentUsage       int     `gorm:"column:current_usage"`
	MyBookingJSON      *string `gorm:"column:my_booking"`
	OccupantsJSON      string  `gorm:"column:occupants"`
}

// GetAllAssets возвращает карточки всех видимых вызывающему фасилити.
// Фасилити категории Event Space видят только клубы. Сортировка:
// категория, затем имя.
func (s *AvailabilityService) GetAllAssets(ctx context.Context, callerName string, callerType model.UserType) ([]AssetView, error) {
	now := s.clock.Now()

	var rows []assetRow
	err := s.db.WithContext(ctx).
		Raw(s.assetsQuery(), map[string]any{
			"now":       now,
			"caller":    callerName,
			"user_type": string(callerType),
			"event":     model.CategoryEventSpace,
		}).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]AssetView, 0, len(rows))
	for _, r := range rows {
		view, err := r.toView()
		if err != nil {
			return nil, apperror.Internal(err, "assemble asset view for facility %d", r.ID)
		}
		out = append(out, view)
	}
	return out, nil
}

// assetsQuery собирает единственный запрос проекции. Занятость приходит
// из производной таблицы: для пуловых это число активных броней,
// для юнитовых — число занятых юнитов. Ближайшая бронь вызывающего и
// текущие обитатели сворачиваются в JSON прямо в запросе; функции
// агрегации у диалектов разные.
func (s *AvailabilityService) assetsQuery() string {
	var myBooking, occupants string
	if s.db.Dialector.Name() == "postgres" {
		myBooking = `json_build_object(
			'id', mb.id, 'unit_id', mb.unit_id, 'booking_type', mb.booking_type,
			'status', mb.status, 'starts_at', mb.starts_at, 'ends_at', mb.ends_at)`
		occupants = `COALESCE((
			SELECT json_agg(json_build_object(
				'booked_by', ob.booked_by, 'user_type', ob.user_type,
				'club_name', ob.club_name, 'booking_type', ob.booking_type,
				'unit_name', fu.unit_name,
				'starts_at', ob.starts_at, 'ends_at', ob.ends_at))
			FROM bookings ob
			LEFT JOIN facility_units fu ON fu.id = ob.unit_id
			WHERE ob.facility_id = f.id
			  AND ob.status IN ('scheduled', 'checked_in')
			  AND ob.starts_at <= @now AND ob.ends_at > @now
		), '[]'::json)`
	} else {
		myBooking = `json_object(
			'id', mb.id, 'unit_id', mb.unit_id, 'booking_type', mb.booking_type,
			'status', mb.status, 'starts_at', mb.starts_at, 'ends_at', mb.ends_at)`
		occupants = `COALESCE((
			SELECT json_group_array(json_object(
				'booked_by', ob.booked_by, 'user_type', ob.user_type,
				'club_name', ob.club_name, 'booking_type', ob.booking_type,
				'unit_name', fu.unit_name,
				'starts_at', ob.starts_at, 'ends_at', ob.ends_at))
			FROM bookings ob
			LEFT JOIN facility_units fu ON fu.id = ob.unit_id
			WHERE ob.facility_id = f.id
			  AND ob.status IN ('scheduled', 'checked_in')
			  AND ob.starts_at <= @now AND ob.ends_at > @now
		), '[]')`
	}

	return fmt.Sprintf(`
SELECT
	f.id, f.name, f.category, f.description, f.total_capacity, f.is_pooled,
	f.min_duration_minutes, f.max_duration_minutes,
	f.open_time, f.close_time, f.timezone,
	CASE WHEN f.is_pooled
		THEN COALESCE(busy.busy_bookings, 0)
		ELSE COALESCE(busy.busy_units, 0)
	END AS current_usage,
	(
		SELECT %s
		FROM bookings mb
		WHERE mb.facility_id = f.id
		  AND mb.booked_by = @caller
		  AND mb.status IN ('scheduled', 'checked_in')
		  AND mb.ends_at > @now
		ORDER BY mb.starts_at ASC
		LIMIT 1
	) AS my_booking,
	%s AS occupants
FROM facilities f
LEFT JOIN (
	SELECT facility_id,
	       COUNT(*) AS busy_bookings,
	       COUNT(DISTINCT unit_id) AS busy_units
	FROM bookings
	WHERE status IN ('scheduled', 'checked_in')
	  AND starts_at <= @now AND ends_at > @now
	GROUP BY facility_id
) busy ON busy.facility_id = f.id
WHERE f.category <> @event OR @user_type = 'club'
ORDER BY f.category ASC, f.name ASC`, myBooking, occupants)
}

func (r assetRow) toView() (AssetView, error) {
	view := AssetView{
		ID:                 r.ID,
		Name:               r.Name,
		Category:           r.Category,
		Description:        r.Description,
		TotalCapacity:      r.TotalCapacity,
		IsPooled:           r.IsPooled,
		MinDurationMinutes: r.MinDurationMinutes,
		MaxDurationMinutes: r.MaxDurationMinutes,
		OpenTime:           r.OpenTime,
		CloseTime:          r.CloseTime,
		Timezone:           r.Timezone,
		CurrentUsage:       r.CurrentUsage,
		CurrentStatus:      AssetStatusInUse,
		ActiveOccupants:    []ActiveOccupant{},
	}

	if free := r.TotalCapacity - r.CurrentUsage; free > 0 {
		view.AvailableCapacity = free
		view.CurrentStatus = AssetStatusAvailable
	}

	if r.MyBookingJSON != nil && *r.MyBookingJSON != "" {
		var raw struct {
			ID          string `json:"id"`
			UnitID      *uint  `json:"unit_id"`
			BookingType string `json:"booking_type"`
			Status      string `json:"status"`
			StartsAt    string `json:"starts_at"`
			EndsAt      string `json:"ends_at"`
		}
		if err := json.Unmarshal([]byte(*r.MyBookingJSON), &raw); err != nil {
			return AssetView{}, fmt.Errorf("my_booking json: %w", err)
		}
		id, err := uuid.Parse(raw.ID)
		if err != nil {
			return AssetView{}, fmt.Errorf("my_booking id: %w", err)
		}
		starts, err := parseDBTime(raw.StartsAt)
		if err != nil {
			return AssetView{}, err
		}
		ends, err := parseDBTime(raw.EndsAt)
		if err != nil {
			return AssetView{}, err
		}
		view.MyActiveBooking = &MyActiveBooking{
			ID:          id,
			UnitID:      raw.UnitID,
			BookingType: raw.BookingType,
			Status:      raw.Status,
			StartsAt:    starts,
			EndsAt:      ends,
		}
	}

	var rawOccupants []struct {
		BookedBy    string `json:"booked_by"`
		UserType    string `json:"user_type"`
		ClubName    string `json:"club_name"`
		BookingType string `json:"booking_type"`
		UnitName    string `json:"unit_name"`
		StartsAt    string `json:"starts_at"`
		EndsAt      string `json:"ends_at"`
	}
	if err := json.Unmarshal([]byte(r.OccupantsJSON), &rawOccupants); err != nil {
		return AssetView{}, fmt.Errorf("occupants json: %w", err)
	}
	for _, o := range rawOccupants {
		starts, err := parseDBTime(o.StartsAt)
		if err != nil {
			return AssetView{}, err
		}
		ends, err := parseDBTime(o.EndsAt)
		if err != nil {
			return AssetView{}, err
		}
		view.ActiveOccupants = append(view.ActiveOccupants, ActiveOccupant{
			BookedBy:    o.BookedBy,
			UserType:    o.UserType,
			ClubName:    o.ClubName,
			BookingType: o.BookingType,
			UnitName:    o.UnitName,
			StartsAt:    starts,
			EndsAt:      ends,
		})
	}

	return view, nil
}

// Формат таймстампа внутри JSON-агрегата зависит от диалекта и драйвера,
// поэтому разбор перебирает известные раскладки.
var dbTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseDBTime(s string) (time.Time, error) {
	for _, layout := range dbTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
