package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/facility-booking/internal/apperror"
	"github.com/Leganyst/facility-booking/internal/broadcast"
	"github.com/Leganyst/facility-booking/internal/clock"
	"github.com/Leganyst/facility-booking/internal/config"
	"github.com/Leganyst/facility-booking/internal/model"
	"github.com/Leganyst/facility-booking/internal/policy"
	"github.com/Leganyst/facility-booking/internal/repository"
)

// BookingService ведёт бронь по жизненному циклу
// scheduled → checked_in → completed / scheduled → released.
// Каждая операция — одна транзакция; замки берутся в глобальном порядке
// фасилити → юнит → бронь, что линеаризует конкурентов без дедлоков.
type BookingService struct {
	db          *gorm.DB
	facilities  repository.FacilityRepository
	bookings    repository.BookingRepository
	policy      *policy.Evaluator
	clock       clock.Clock
	broadcaster broadcast.Broadcaster
	grace       time.Duration
}

func NewBookingService(
	gdb *gorm.DB,
	facilities repository.FacilityRepository,
	bookings repository.BookingRepository,
	eval *policy.Evaluator,
	clk clock.Clock,
	bc broadcast.Broadcaster,
	cfg *config.App,
) *BookingService {
	return &BookingService{
		db:          gdb,
		facilities:  facilities,
		bookings:    bookings,
		policy:      eval,
		clock:       clk,
		broadcaster: bc,
		grace:       cfg.NoShowGrace(),
	}
}

type CreateBookingInput struct {
	FacilityID uint
	UnitID     *uint
	UserName   string
	UserType   model.UserType
	ClubName   string
	StartsAt   time.Time
	EndsAt     time.Time
}

// Create проводит заявку через валидацию и конфликтный протокол
// и вставляет бронь в статусе scheduled.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	now := s.clock.Now()
	start := s.policy.SnapToSlot(in.StartsAt.UTC())
	end := s.policy.SnapToSlot(in.EndsAt.UTC())
	idemKey := s.policy.IdempotencyKey(in.UserName, start)

	var created *model.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		facilities := s.facilities.WithTx(tx)
		bookings := s.bookings.WithTx(tx)

		fac, err := facilities.LockByID(ctx, in.FacilityID)
		if err != nil {
			return err
		}

		bookingType, err := s.policy.Validate(fac, start, end, in.UserType, now)
		if err != nil {
			return err
		}

		var unitID *uint

		switch bookingType {
		case model.BookingTypeFullDay:
			unitID, err = s.checkFullDayClaim(ctx, facilities, bookings, fac, in.UnitID, start)
			if err != nil {
				return err
			}
		default:
			// Весь день занят клубом — слотовые заявки не проходят.
			dayStart, dayEnd := dayBounds(start)
			fullDays, err := bookings.ActiveFullDayOnFacility(ctx, fac.ID, dayStart, dayEnd)
			if err != nil {
				return err
			}
			if len(fullDays) > 0 {
				return apperror.Conflict("the facility is reserved for a full-day event on this date")
			}
		}

		if err := s.policy.ValidateClub(in.UserType, in.ClubName); err != nil {
			return err
		}

		selfOverlaps, err := bookings.ActiveOverlapsForUser(ctx, in.UserName, start, end)
		if err != nil {
			return err
		}
		if len(selfOverlaps) > 0 {
			return apperror.Conflict("you already have a booking that overlaps this time")
		}

		if bookingType == model.BookingTypeTimeBased {
			unitID, err = s.checkCapacity(ctx, facilities, bookings, fac, in.UnitID, start, end)
			if err != nil {
				return err
			}
		}

		b := &model.Booking{
			ID:             uuid.New(),
			FacilityID:     fac.ID,
			UnitID:         unitID,
			BookedBy:       in.UserName,
			UserType:       in.UserType,
			ClubName:       in.ClubName,
			BookingType:    bookingType,
			StartsAt:       start,
			EndsAt:         end,
			Status:         model.BookingStatusScheduled,
			IdempotencyKey: idemKey,
		}
		if err := bookings.Create(ctx, b); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("duplicate submission: an identical booking is already active")
			}
			return err
		}

		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(broadcast.EventAssetsUpdated)
	return created, nil
}

// checkFullDayClaim резервирует календарный день: на пуловой фасилити
// день должен быть пуст целиком, на юнитовой — пуст её юнит.
func (s *BookingService) checkFullDayClaim(
	ctx context.Context,
	facilities repository.FacilityRepository,
	bookings repository.BookingRepository,
	fac *model.Facility,
	requestedUnit *uint,
	start time.Time,
) (*uint, error) {
	dayStart, dayEnd := dayBounds(start)

	var (
		overlaps []model.Booking
		unitID   *uint
		err      error
	)

	if fac.IsPooled {
		overlaps, err = bookings.ActiveOverlapsOnFacility(ctx, fac.ID, dayStart, dayEnd)
	} else {
		unitID, err = s.lockOwnedUnit(ctx, facilities, fac, requestedUnit)
		if err != nil {
			return nil, err
		}
		overlaps, err = bookings.ActiveOverlapsOnUnit(ctx, *unitID, dayStart, dayEnd)
	}
	if err != nil {
		return nil, err
	}

	for _, b := range overlaps {
		if b.BookingType == model.BookingTypeFullDay {
			return nil, apperror.Conflict("the day is already taken by %s", b.ClubName)
		}
	}
	if len(overlaps) > 0 {
		return nil, apperror.Conflict("there are per-slot bookings on this day")
	}

	return unitID, nil
}

// checkCapacity — шаг ёмкости: счётчик для пуловых, замок юнита и
// проверка пересечений для юнитовых.
func (s *BookingService) checkCapacity(
	ctx context.Context,
	facilities repository.FacilityRepository,
	bookings repository.BookingRepository,
	fac *model.Facility,
	requestedUnit *uint,
	start, end time.Time,
) (*uint, error) {
	if fac.IsPooled {
		count, err := bookings.CountActiveOverlapsOnFacility(ctx, fac.ID, start, end)
		if err != nil {
			return nil, err
		}
		if count >= int64(fac.TotalCapacity) {
			return nil, apperror.Conflict("no capacity left in this time window")
		}
		return nil, nil
	}

	unitID, err := s.lockOwnedUnit(ctx, facilities, fac, requestedUnit)
	if err != nil {
		return nil, err
	}

	overlaps, err := bookings.ActiveOverlapsOnUnit(ctx, *unitID, start, end)
	if err != nil {
		return nil, err
	}
	if len(overlaps) > 0 {
		incumbent := overlaps[0]
		details := &apperror.ConflictDetails{
			BookedBy: incumbent.BookedBy,
			ClubName: incumbent.ClubName,
			UserType: string(incumbent.UserType),
			StartsAt: incumbent.StartsAt,
			EndsAt:   incumbent.EndsAt,
		}
		// Для Event Space с клубным владельцем наружу уходит имя клуба,
		// а не личная идентичность.
		holder := incumbent.BookedBy
		if fac.Category == model.CategoryEventSpace && incumbent.ClubName != "" {
			holder = incumbent.ClubName
		}
		return nil, apperror.ConflictWith(details, "this unit is already booked by %s", holder)
	}

	return unitID, nil
}

// lockOwnedUnit требует unit_id, берёт замок юнита (после замка фасилити)
// и проверяет принадлежность.
func (s *BookingService) lockOwnedUnit(
	ctx context.Context,
	facilities repository.FacilityRepository,
	fac *model.Facility,
	requestedUnit *uint,
) (*uint, error) {
	if requestedUnit == nil {
		return nil, apperror.BadRequest("unitId is required for this facility")
	}
	unit, err := facilities.LockUnitByID(ctx, *requestedUnit)
	if err != nil {
		return nil, err
	}
	if unit.FacilityID != fac.ID {
		return nil, apperror.BadRequest("unit %d does not belong to facility %d", unit.ID, fac.ID)
	}
	if !unit.IsOperational {
		return nil, apperror.BadRequest("unit %q is not operational", unit.UnitName)
	}
	id := unit.ID
	return &id, nil
}

// CheckIn переводит scheduled → checked_in внутри грейс-окна
// [starts_at, starts_at + grace].
func (s *BookingService) CheckIn(ctx context.Context, bookingID uuid.UUID, userName string) (*model.Booking, error) {
	now := s.clock.Now()

	b, err := s.transition(ctx, bookingID, userName, func(b *model.Booking) error {
		if b.Status != model.BookingStatusScheduled {
			return apperror.BadRequest("booking is not awaiting check-in (status %s)", b.Status)
		}
		if now.Before(b.StartsAt) {
			return apperror.Forbidden("check-in opens at the booking start time")
		}
		if now.After(b.StartsAt.Add(s.grace)) {
			return apperror.Forbidden("check-in window has expired")
		}
		b.Status = model.BookingStatusCheckedIn
		return nil
	}, func(ctx context.Context, bookings repository.BookingRepository, b *model.Booking) error {
		return bookings.UpdateStatus(ctx, b.ID, model.BookingStatusCheckedIn)
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(broadcast.EventAssetsUpdated)
	return b, nil
}

// CheckOut завершает активную сессию досрочно; конец переписывается
// на следующую слотовую границу строго после текущего момента.
func (s *BookingService) CheckOut(ctx context.Context, bookingID uuid.UUID, userName string) (*model.Booking, error) {
	now := s.clock.Now()
	newEnd := s.policy.SnapToNextBoundary(now)

	b, err := s.transition(ctx, bookingID, userName, func(b *model.Booking) error {
		if b.Status != model.BookingStatusCheckedIn {
			return apperror.BadRequest("booking is not checked in (status %s)", b.Status)
		}
		b.Status = model.BookingStatusCompleted
		b.EndsAt = newEnd
		return nil
	}, func(ctx context.Context, bookings repository.BookingRepository, b *model.Booking) error {
		return bookings.Complete(ctx, b.ID, newEnd)
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(broadcast.EventAssetsUpdated)
	return b, nil
}

// Cancel отпускает ещё не начавшуюся бронь: scheduled → released.
func (s *BookingService) Cancel(ctx context.Context, bookingID uuid.UUID, userName string) (*model.Booking, error) {
	b, err := s.transition(ctx, bookingID, userName, func(b *model.Booking) error {
		if b.Status != model.BookingStatusScheduled {
			return apperror.BadRequest("only scheduled bookings can be cancelled (status %s)", b.Status)
		}
		b.Status = model.BookingStatusReleased
		return nil
	}, func(ctx context.Context, bookings repository.BookingRepository, b *model.Booking) error {
		return bookings.UpdateStatus(ctx, b.ID, model.BookingStatusReleased)
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(broadcast.EventAssetsUpdated)
	return b, nil
}

// ListUserBookings — все брони пользователя с фасилити и юнитом.
func (s *BookingService) ListUserBookings(ctx context.Context, userName string) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userName)
}

// transition — общий каркас переходов по вызову владельца: транзакция,
// замок фасилити, замок брони, проверка идентичности, guard, update.
func (s *BookingService) transition(
	ctx context.Context,
	bookingID uuid.UUID,
	userName string,
	guard func(b *model.Booking) error,
	apply func(ctx context.Context, bookings repository.BookingRepository, b *model.Booking) error,
) (*model.Booking, error) {
	var out *model.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		facilities := s.facilities.WithTx(tx)
		bookings := s.bookings.WithTx(tx)

		// Фасилити узнаём без замка, затем блокируем в каноническом порядке.
		peek, err := bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := facilities.LockByID(ctx, peek.FacilityID); err != nil {
			return err
		}

		b, err := bookings.LockByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.BookedBy != userName {
			return apperror.Forbidden("booking belongs to another user")
		}
		if err := guard(b); err != nil {
			return err
		}
		if err := apply(ctx, bookings, b); err != nil {
			return err
		}

		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// dayBounds — границы календарного дня инстанта t (UTC): [00:00, 24:00).
func dayBounds(t time.Time) (time.Time, time.Time) {
	year, month, day := t.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
