package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/facility-booking/internal/apperror"
	"github.com/Leganyst/facility-booking/internal/clock"
	"github.com/Leganyst/facility-booking/internal/model"
	"github.com/Leganyst/facility-booking/internal/repository"
)

// Прямая вставка строки брони: проекторы читают состояние, которое обычно
// готовит сервис, но тестам нужны и ручные комбинации статусов.
func insertBooking(
	t *testing.T,
	gdb *gorm.DB,
	facilityID uint,
	unitID *uint,
	user string,
	status model.BookingStatus,
	bookingType model.BookingType,
	start, end time.Time,
) model.Booking {
	t.Helper()

	b := model.Booking{
		ID:             uuid.New(),
		FacilityID:     facilityID,
		UnitID:         unitID,
		BookedBy:       user,
		UserType:       model.UserTypeIndividual,
		BookingType:    bookingType,
		StartsAt:       start,
		EndsAt:         end,
		Status:         status,
		IdempotencyKey: user + "_" + strconv.FormatInt(start.UnixMilli(), 10),
	}
	if err := gdb.Create(&b).Error; err != nil {
		t.Fatalf("insert booking for %s: %v", user, err)
	}
	return b
}

func TestGetAllAssetsUsageAndStatus(t *testing.T) {
	gdb := newTestDB(t)
	seedFacilities(t, gdb)

	now := mustTime(t, 2025, time.June, 2, 16, 0)
	svc := NewAvailabilityService(gdb, clock.Fixed{T: now})
	ctx := context.Background()

	// Корты: два занятых юнита сейчас, одна бронь уже закончилась.
	insertBooking(t, gdb, 2, uintPtr(10), "alice", model.BookingStatusCheckedIn,
		model.BookingTypeTimeBased, now.Add(-time.Hour), now.Add(time.Hour))
	insertBooking(t, gdb, 2, uintPtr(11), "bob", model.BookingStatusScheduled,
		model.BookingTypeTimeBased, now, now.Add(time.Hour))
	insertBooking(t, gdb, 2, uintPtr(10), "carol", model.BookingStatusCompleted,
		model.BookingTypeTimeBased, now.Add(-3*time.Hour), now.Add(-2*time.Hour))

	// Читальный зал: пул полностью выбран.
	insertBooking(t, gdb, 3, nil, "dave", model.BookingStatusCheckedIn,
		model.BookingTypeTimeBased, now.Add(-time.Hour), now.Add(time.Hour))
	insertBooking(t, gdb, 3, nil, "erin", model.BookingStatusScheduled,
		model.BookingTypeTimeBased, now, now.Add(2*time.Hour))

	views, err := svc.GetAllAssets(ctx, "nobody", model.UserTypeIndividual)
	if err != nil {
		t.Fatalf("get all assets: %v", err)
	}

	// Индивидуалу Event Space не показывается; сортировка категория → имя.
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2 (no event space for individuals)", len(views))
	}
	if views[0].Name != "Study Hall" || views[1].Name != "Courts" {
		t.Fatalf("order = [%s, %s], want [Study Hall, Courts]", views[0].Name, views[1].Name)
	}

	hall, courts := views[0], views[1]

	if hall.CurrentUsage != 2 || hall.AvailableCapacity != 0 || hall.CurrentStatus != AssetStatusInUse {
		t.Errorf("study hall = usage %d / free %d / %s, want 2 / 0 / in_use",
			hall.CurrentUsage, hall.AvailableCapacity, hall.CurrentStatus)
	}
	if courts.CurrentUsage != 2 || courts.AvailableCapacity != 1 || courts.CurrentStatus != AssetStatusAvailable {
		t.Errorf("courts = usage %d / free %d / %s, want 2 / 1 / available",
			courts.CurrentUsage, courts.AvailableCapacity, courts.CurrentStatus)
	}

	if len(courts.ActiveOccupants) != 2 {
		t.Fatalf("courts occupants = %d, want 2", len(courts.ActiveOccupants))
	}
	names := map[string]string{}
	for _, o := range courts.ActiveOccupants {
		names[o.BookedBy] = o.UnitName
	}
	if names["alice"] != "Court A" || names["bob"] != "Court B" {
		t.Errorf("occupant units = %v, want alice:Court A bob:Court B", names)
	}
	for _, o := range hall.ActiveOccupants {
		if o.UnitName != "" {
			t.Errorf("pooled occupant %s carries unit %q", o.BookedBy, o.UnitName)
		}
	}
}

func TestGetAllAssetsEventSpaceVisibility(t *testing.T) {
	gdb := newTestDB(t)
	seedFacilities(t, gdb)

	now := mustTime(t, 2025, time.June, 2, 16, 0)
	svc := NewAvailabilityService(gdb, clock.Fixed{T: now})
	ctx := context.Background()

	views, err := svc.GetAllAssets(ctx, "ru-lead", model.UserTypeClub)
	if err != nil {
		t.Fatalf("get all assets: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("len = %d, want 3 for a club caller", len(views))
	}
	if views[1].Name != "Main Auditorium" || views[1].Category != model.CategoryEventSpace {
		t.Errorf("views[1] = %s/%s, want the event space", views[1].Name, views[1].Category)
	}
}

func TestGetAllAssetsMyActiveBooking(t *testing.T) {
	gdb := newTestDB(t)
	seedFacilities(t, gdb)

	now := mustTime(t, 2025, time.June, 2, 16, 0)
	svc := NewAvailabilityService(gdb, clock.Fixed{T: now})
	ctx := context.Background()

	// Прошедшая бронь не считается; из двух будущих берётся ближайшая.
	insertBooking(t, gdb, 2, uintPtr(10), "alice", model.BookingStatusCompleted,
		model.BookingTypeTimeBased, now.Add(-3*time.Hour), now.Add(-2*time.Hour))
	nearest := insertBooking(t, gdb, 2, uintPtr(11), "alice", model.BookingStatusScheduled,
		model.BookingTypeTimeBased, now.Add(time.Hour), now.Add(2*time.Hour))
	insertBooking(t, gdb, 2, uintPtr(10), "alice", model.BookingStatusScheduled,
		model.BookingTypeTimeBased, now.Add(4*time.Hour), now.Add(5*time.Hour))

	views, err := svc.GetAllAssets(ctx, "alice", model.UserTypeIndividual)
	if err != nil {
		t.Fatalf("get all assets: %v", err)
	}

	var courts *AssetView
	for i := range views {
		if views[i].Name == "Courts" {
			courts = &views[i]
		} else if views[i].MyActiveBooking != nil {
			t.Errorf("unexpected my_active_booking on %s", views[i].Name)
		}
	}
	if courts == nil {
		t.Fatal("courts view is missing")
	}
	mine := courts.MyActiveBooking
	if mine == nil {
		t.Fatal("my_active_booking is nil")
	}
	if mine.ID != nearest.ID {
		t.Errorf("my booking id = %s, want the nearest %s", mine.ID, nearest.ID)
	}
	if !mine.StartsAt.Equal(nearest.StartsAt) || !mine.EndsAt.Equal(nearest.EndsAt) {
		t.Errorf("my booking window = [%v, %v), want [%v, %v)",
			mine.StartsAt, mine.EndsAt, nearest.StartsAt, nearest.EndsAt)
	}
	if mine.UnitID == nil || *mine.UnitID != 11 {
		t.Errorf("my booking unit = %v, want 11", mine.UnitID)
	}
}

func TestGetScheduleForDate(t *testing.T) {
	gdb := newTestDB(t)
	seedFacilities(t, gdb)

	facilities := repository.NewGormFacilityRepository(gdb)
	bookings := repository.NewGormBookingRepository(gdb)
	svc := NewScheduleService(facilities, bookings)
	ctx := context.Background()

	day := mustTime(t, 2025, time.June, 2, 0, 0)

	// В сетку попадают дневные брони и хвост ночной; released — нет.
	inDay := insertBooking(t, gdb, 2, uintPtr(10), "alice", model.BookingStatusScheduled,
		model.BookingTypeTimeBased, day.Add(10*time.Hour), day.Add(11*time.Hour))
	overnight := insertBooking(t, gdb, 2, uintPtr(10), "bob", model.BookingStatusCheckedIn,
		model.BookingTypeTimeBased, day.Add(-2*time.Hour), day.Add(30*time.Minute))
	insertBooking(t, gdb, 2, uintPtr(11), "carol", model.BookingStatusReleased,
		model.BookingTypeTimeBased, day.Add(12*time.Hour), day.Add(13*time.Hour))
	insertBooking(t, gdb, 2, uintPtr(11), "dave", model.BookingStatusScheduled,
		model.BookingTypeTimeBased, day.Add(24*time.Hour), day.Add(25*time.Hour))

	got, err := svc.GetScheduleForDate(ctx, 2, datatypes.Date(day))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if got.Date != "2025-06-02" {
		t.Errorf("date = %q, want 2025-06-02", got.Date)
	}
	// Только операционные юниты, по имени: Court A, Court B.
	if len(got.Units) != 2 {
		t.Fatalf("units = %d, want 2 (non-operational hidden)", len(got.Units))
	}
	if got.Units[0].UnitName != "Court A" || got.Units[1].UnitName != "Court B" {
		t.Fatalf("unit order = [%s, %s], want [Court A, Court B]",
			got.Units[0].UnitName, got.Units[1].UnitName)
	}

	courtA := got.Units[0]
	if len(courtA.Bookings) != 2 {
		t.Fatalf("court A bookings = %d, want 2", len(courtA.Bookings))
	}
	if courtA.Bookings[0].ID != overnight.ID || courtA.Bookings[1].ID != inDay.ID {
		t.Errorf("court A order = [%s, %s], want overnight tail first",
			courtA.Bookings[0].ID, courtA.Bookings[1].ID)
	}

	// Пустой юнит присутствует с пустым списком, а не с nil.
	courtB := got.Units[1]
	if courtB.Bookings == nil || len(courtB.Bookings) != 0 {
		t.Errorf("court B bookings = %v, want empty list", courtB.Bookings)
	}
}

func TestGetScheduleForDateUnknownFacility(t *testing.T) {
	gdb := newTestDB(t)
	seedFacilities(t, gdb)

	svc := NewScheduleService(
		repository.NewGormFacilityRepository(gdb),
		repository.NewGormBookingRepository(gdb),
	)

	day := mustTime(t, 2025, time.June, 2, 0, 0)
	_, err := svc.GetScheduleForDate(context.Background(), 99, datatypes.Date(day))
	if apperror.KindOf(err) != apperror.KindNotFound {
		t.Fatalf("kind = %v (%v), want not found", apperror.KindOf(err), err)
	}
}
