package policy

import (
	"testing"
	"time"

	"github.com/Leganyst/facility-booking/internal/apperror"
	"github.com/Leganyst/facility-booking/internal/config"
	"github.com/Leganyst/facility-booking/internal/model"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(&config.App{
		SlotSizeMinutes:        30,
		MaxBookingHorizonDays:  7,
		ClubBookingHorizonDays: 30,
		ValidClubs:             []string{"Roobooru", "Chess Circle"},
	})
}

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func testFacility() *model.Facility {
	return &model.Facility{
		ID:                 2,
		Name:               "Courts",
		TotalCapacity:      3,
		MinDurationMinutes: 30,
		MaxDurationMinutes: 120,
		OpenTime:           "07:00",
		CloseTime:          "23:00",
	}
}

//
// SnapToSlot
//

func TestSnapToSlot(t *testing.T) {
	e := testEvaluator()

	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"already aligned", mustTime(t, 2025, 6, 1, 16, 0), mustTime(t, 2025, 6, 1, 16, 0)},
		{"rounds down", mustTime(t, 2025, 6, 1, 16, 7), mustTime(t, 2025, 6, 1, 16, 0)},
		{"rounds up", mustTime(t, 2025, 6, 1, 16, 52), mustTime(t, 2025, 6, 1, 17, 0)},
		{"tie rounds up", mustTime(t, 2025, 6, 1, 16, 15), mustTime(t, 2025, 6, 1, 16, 30)},
		{"tie below hour rounds up", mustTime(t, 2025, 6, 1, 16, 45), mustTime(t, 2025, 6, 1, 17, 0)},
		{"just under tie rounds down", mustTime(t, 2025, 6, 1, 16, 14), mustTime(t, 2025, 6, 1, 16, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.SnapToSlot(tc.in)
			if !got.Equal(tc.want) {
				t.Fatalf("SnapToSlot(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSnapToSlot_ZeroesSeconds(t *testing.T) {
	e := testEvaluator()

	in := time.Date(2025, 6, 1, 16, 7, 42, 999_000_000, time.UTC)
	got := e.SnapToSlot(in)
	want := mustTime(t, 2025, 6, 1, 16, 0)
	if !got.Equal(want) {
		t.Fatalf("SnapToSlot(%v) = %v, want %v", in, got, want)
	}
}

//
// SnapToNextBoundary
//

func TestSnapToNextBoundary(t *testing.T) {
	e := testEvaluator()

	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		// На границе — прыжок на следующую (строго больше).
		{"on boundary jumps", mustTime(t, 2025, 6, 1, 17, 30), mustTime(t, 2025, 6, 1, 18, 0)},
		{"on hour jumps", mustTime(t, 2025, 6, 1, 17, 0), mustTime(t, 2025, 6, 1, 17, 30)},
		{"mid slot", mustTime(t, 2025, 6, 1, 17, 12), mustTime(t, 2025, 6, 1, 17, 30)},
		{"one minute before", mustTime(t, 2025, 6, 1, 17, 29), mustTime(t, 2025, 6, 1, 17, 30)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.SnapToNextBoundary(tc.in)
			if !got.Equal(tc.want) {
				t.Fatalf("SnapToNextBoundary(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSnapToNextBoundary_SecondsPastBoundary(t *testing.T) {
	e := testEvaluator()

	// 17:30:30 — граница 17:30 уже не "строго больше", ждём 18:00.
	in := time.Date(2025, 6, 1, 17, 30, 30, 0, time.UTC)
	got := e.SnapToNextBoundary(in)
	want := mustTime(t, 2025, 6, 1, 18, 0)
	if !got.Equal(want) {
		t.Fatalf("SnapToNextBoundary(%v) = %v, want %v", in, got, want)
	}
}

//
// IdempotencyKey
//

func TestIdempotencyKey_Deterministic(t *testing.T) {
	e := testEvaluator()

	start := mustTime(t, 2025, 6, 1, 16, 0)
	k1 := e.IdempotencyKey("alice", start)
	k2 := e.IdempotencyKey("alice", start)
	if k1 != k2 {
		t.Fatalf("keys differ: %q vs %q", k1, k2)
	}
	if k1 != "alice_1748793600000" {
		t.Fatalf("unexpected key %q", k1)
	}

	if e.IdempotencyKey("bob", start) == k1 {
		t.Fatalf("different identities must not collide")
	}
	if e.IdempotencyKey("alice", start.Add(30*time.Minute)) == k1 {
		t.Fatalf("different starts must not collide")
	}
}

//
// Validate
//

func TestValidate_OK(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 15, 45)

	bt, err := e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 1, 16, 0),
		mustTime(t, 2025, 6, 1, 17, 0),
		model.UserTypeIndividual,
		now,
	)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if bt != model.BookingTypeTimeBased {
		t.Fatalf("expected time_based, got %s", bt)
	}
}

func TestValidate_PastStart(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 16, 30)

	_, err := e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 1, 16, 0),
		mustTime(t, 2025, 6, 1, 17, 0),
		model.UserTypeIndividual,
		now,
	)
	if apperror.KindOf(err) != apperror.KindBadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}

func TestValidate_StartAtNowAllowed(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 16, 0)

	_, err := e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 1, 16, 0),
		mustTime(t, 2025, 6, 1, 17, 0),
		model.UserTypeIndividual,
		now,
	)
	if err != nil {
		t.Fatalf("start == now must be allowed, got %v", err)
	}
}

func TestValidate_Horizon(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 10, 0)

	// Ровно на горизонте — можно.
	_, err := e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 8, 10, 0),
		mustTime(t, 2025, 6, 8, 11, 0),
		model.UserTypeIndividual,
		now,
	)
	if err != nil {
		t.Fatalf("start at horizon must be allowed, got %v", err)
	}

	// За горизонтом — Forbidden.
	_, err = e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 8, 10, 30),
		mustTime(t, 2025, 6, 8, 11, 30),
		model.UserTypeIndividual,
		now,
	)
	if apperror.KindOf(err) != apperror.KindForbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}

	// Клубу тот же момент доступен: у него расширенный горизонт.
	_, err = e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 8, 10, 30),
		mustTime(t, 2025, 6, 8, 11, 30),
		model.UserTypeClub,
		now,
	)
	if err != nil {
		t.Fatalf("club horizon must allow it, got %v", err)
	}
}

func TestValidate_EndNotAfterStart(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 10, 0)
	start := mustTime(t, 2025, 6, 1, 16, 0)

	_, err := e.Validate(testFacility(), start, start, model.UserTypeIndividual, now)
	if apperror.KindOf(err) != apperror.KindBadRequest {
		t.Fatalf("expected BadRequest for empty interval, got %v", err)
	}
}

func TestValidate_FullDayClassification(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 9, 0)
	start := mustTime(t, 2025, 6, 2, 8, 0)

	// Ровно 8 часов — full_day.
	bt, err := e.Validate(testFacility(), start, start.Add(8*time.Hour), model.UserTypeClub, now)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if bt != model.BookingTypeFullDay {
		t.Fatalf("8h must classify as full_day, got %s", bt)
	}

	// 8 часов без минуты — time_based (и дальше валится по max duration).
	_, err = e.Validate(testFacility(), start, start.Add(8*time.Hour-time.Minute), model.UserTypeClub, now)
	if apperror.KindOf(err) != apperror.KindBadRequest {
		t.Fatalf("7h59m is time_based and must hit duration bounds, got %v", err)
	}
}

func TestValidate_FullDayForIndividualForbidden(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 9, 0)
	start := mustTime(t, 2025, 6, 2, 8, 0)

	_, err := e.Validate(testFacility(), start, start.Add(9*time.Hour), model.UserTypeIndividual, now)
	if apperror.KindOf(err) != apperror.KindForbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestValidate_OperatingHours(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 5, 0)

	// До открытия.
	_, err := e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 1, 6, 0),
		mustTime(t, 2025, 6, 1, 7, 0),
		model.UserTypeIndividual,
		now,
	)
	if apperror.KindOf(err) != apperror.KindBadRequest {
		t.Fatalf("expected BadRequest before opening, got %v", err)
	}

	// Впритык к закрытию — можно.
	_, err = e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 1, 22, 0),
		mustTime(t, 2025, 6, 1, 23, 0),
		model.UserTypeIndividual,
		now,
	)
	if err != nil {
		t.Fatalf("interval ending at close time must pass, got %v", err)
	}

	// Через закрытие.
	_, err = e.Validate(
		testFacility(),
		mustTime(t, 2025, 6, 1, 22, 30),
		mustTime(t, 2025, 6, 1, 23, 30),
		model.UserTypeIndividual,
		now,
	)
	if apperror.KindOf(err) != apperror.KindBadRequest {
		t.Fatalf("expected BadRequest past closing, got %v", err)
	}
}

func TestValidate_DurationBounds(t *testing.T) {
	e := testEvaluator()
	now := mustTime(t, 2025, 6, 1, 10, 0)
	start := mustTime(t, 2025, 6, 1, 16, 0)

	// Больше максимума (120 минут).
	_, err := e.Validate(testFacility(), start, start.Add(150*time.Minute), model.UserTypeIndividual, now)
	if apperror.KindOf(err) != apperror.KindBadRequest {
		t.Fatalf("expected BadRequest over max duration, got %v", err)
	}

	// Ровно максимум — можно.
	_, err = e.Validate(testFacility(), start, start.Add(120*time.Minute), model.UserTypeIndividual, now)
	if err != nil {
		t.Fatalf("max duration must pass, got %v", err)
	}
}

//
// ValidateClub
//

func TestValidateClub(t *testing.T) {
	e := testEvaluator()

	if err := e.ValidateClub(model.UserTypeIndividual, ""); err != nil {
		t.Fatalf("individuals need no club, got %v", err)
	}
	if err := e.ValidateClub(model.UserTypeClub, "Roobooru"); err != nil {
		t.Fatalf("registered club must pass, got %v", err)
	}
	if err := e.ValidateClub(model.UserTypeClub, ""); apperror.KindOf(err) != apperror.KindBadRequest {
		t.Fatalf("missing club name must be BadRequest, got %v", err)
	}
	if err := e.ValidateClub(model.UserTypeClub, "Midnight Society"); apperror.KindOf(err) != apperror.KindBadRequest {
		t.Fatalf("unregistered club must be BadRequest, got %v", err)
	}
}
