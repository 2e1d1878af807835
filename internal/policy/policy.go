package policy

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Leganyst/facility-booking/internal/apperror"
	"github.com/Leganyst/facility-booking/internal/config"
	"github.com/Leganyst/facility-booking/internal/model"
)

// Заявка длительностью от 8 часов считается бронью на весь день.
const fullDayThreshold = 8 * time.Hour

// Evaluator — чистый валидатор заявок: ни часов, ни хранилища внутри,
// текущий момент приходит аргументом.
type Evaluator struct {
	slotSize        time.Duration
	horizonDays     int
	clubHorizonDays int
	clubs           map[string]struct{}
}

func NewEvaluator(cfg *config.App) *Evaluator {
	return &Evaluator{
		slotSize:        cfg.SlotSize(),
		horizonDays:     cfg.MaxBookingHorizonDays,
		clubHorizonDays: cfg.ClubBookingHorizonDays,
		clubs:           cfg.ClubSet(),
	}
}

// SnapToSlot округляет инстант к ближайшей слотовой границе.
// Секунды и доли секунд обнуляются; ровно половина шага округляется вверх.
func (e *Evaluator) SnapToSlot(t time.Time) time.Time {
	t = t.Truncate(time.Minute)
	step := int(e.slotSize / time.Minute)
	rem := t.Minute() % step
	snapped := t.Add(-time.Duration(rem) * time.Minute)
	if rem*2 >= step {
		snapped = snapped.Add(e.slotSize)
	}
	return snapped
}

// SnapToNextBoundary возвращает наименьшую слотовую границу строго больше t:
// прибавляем минуту и поднимаем до кратности шага. Чек-аут ровно на границе
// из-за этого прыгает на следующую — поведение закреплено тестами.
func (e *Evaluator) SnapToNextBoundary(t time.Time) time.Time {
	t = t.Truncate(time.Minute).Add(time.Minute)
	step := int(e.slotSize / time.Minute)
	rem := t.Minute() % step
	if rem != 0 {
		t = t.Add(time.Duration(step-rem) * time.Minute)
	}
	return t
}

// IdempotencyKey детерминирован по (идентичность, снапнутое начало):
// повторная отправка той же формы даёт тот же ключ и ловится
// уникальным частичным индексом.
func (e *Evaluator) IdempotencyKey(identity string, startsAt time.Time) string {
	return identity + "_" + strconv.FormatInt(startsAt.UnixMilli(), 10)
}

// Validate прогоняет заявку по правилам в фиксированном порядке
// (первое нарушение выигрывает) и классифицирует бронь.
// Ожидает уже снапнутые границы.
func (e *Evaluator) Validate(
	f *model.Facility,
	start, end time.Time,
	userType model.UserType,
	now time.Time,
) (model.BookingType, error) {
	if start.Before(now) {
		return "", apperror.BadRequest("cannot create a booking in the past")
	}

	horizon := e.horizonDays
	if userType == model.UserTypeClub {
		horizon = e.clubHorizonDays
	}
	if start.After(now.AddDate(0, 0, horizon)) {
		return "", apperror.Forbidden("booking starts beyond the %d-day horizon", horizon)
	}

	if !end.After(start) {
		return "", apperror.BadRequest("end time must be after start time")
	}

	duration := end.Sub(start)
	if duration >= fullDayThreshold {
		if userType != model.UserTypeClub {
			return "", apperror.Forbidden("full-day bookings are available to clubs only")
		}
		return model.BookingTypeFullDay, nil
	}

	if err := e.checkOperatingHours(f, start, end); err != nil {
		return "", err
	}

	minDur := time.Duration(f.MinDurationMinutes) * time.Minute
	maxDur := time.Duration(f.MaxDurationMinutes) * time.Minute
	if duration < minDur || duration > maxDur {
		return "", apperror.BadRequest(
			"session length must be between %d and %d minutes",
			f.MinDurationMinutes, f.MaxDurationMinutes,
		)
	}

	return model.BookingTypeTimeBased, nil
}

// ValidateClub проверяет клубную идентичность: имя обязательно
// и должно состоять в закрытом реестре.
func (e *Evaluator) ValidateClub(userType model.UserType, clubName string) error {
	if userType != model.UserTypeClub {
		return nil
	}
	if clubName == "" {
		return apperror.BadRequest("clubName is required for club bookings")
	}
	if _, ok := e.clubs[clubName]; !ok {
		return apperror.BadRequest("unknown club %q", clubName)
	}
	return nil
}

// Часы работы сравниваются по компонентам времени суток снапнутых
// инстантов; колонка timezone остаётся справочной.
func (e *Evaluator) checkOperatingHours(f *model.Facility, start, end time.Time) error {
	openMin, err := parseWallClock(f.OpenTime)
	if err != nil {
		return apperror.Internal(err, "facility %d: bad open_time %q", f.ID, f.OpenTime)
	}
	closeMin, err := parseWallClock(f.CloseTime)
	if err != nil {
		return apperror.Internal(err, "facility %d: bad close_time %q", f.ID, f.CloseTime)
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	// Конец ровно в полночь трактуем как 24:00 того же дня.
	if endMin == 0 {
		endMin = 24 * 60
	}

	if startMin < openMin || endMin > closeMin {
		return apperror.BadRequest(
			"booking must fit within operating hours %s-%s",
			f.OpenTime, f.CloseTime,
		)
	}
	return nil
}

// parseWallClock разбирает "HH:MM" в минуты от полуночи.
func parseWallClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse wall clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
