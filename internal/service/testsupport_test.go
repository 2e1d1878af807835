package service

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/facility-booking/internal/broadcast"
	"github.com/Leganyst/facility-booking/internal/clock"
	"github.com/Leganyst/facility-booking/internal/config"
	"github.com/Leganyst/facility-booking/internal/model"
	"github.com/Leganyst/facility-booking/internal/policy"
	"github.com/Leganyst/facility-booking/internal/repository"
)

func testConfig() *config.App {
	return &config.App{
		SlotSizeMinutes:        30,
		NoShowGraceMinutes:     15,
		MinSessionMinutes:      30,
		MaxBookingHorizonDays:  7,
		ClubBookingHorizonDays: 30,
		ValidClubs:             []string{"Roobooru", "Chess Circle"},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Одно соединение, иначе каждый коннект пула получит свою :memory:-базу.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

// Демо-каталог: юнитовые корты, пуловый читальный зал, клубная площадка.
func seedFacilities(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	rows := []model.Facility{
		{
			ID: 2, Name: "Courts", Category: "Sports",
			TotalCapacity: 3, IsPooled: false,
			MinDurationMinutes: 30, MaxDurationMinutes: 120,
			OpenTime: "07:00", CloseTime: "23:00", Timezone: "UTC",
		},
		{
			ID: 3, Name: "Study Hall", Category: "Academics",
			TotalCapacity: 2, IsPooled: true,
			MinDurationMinutes: 30, MaxDurationMinutes: 240,
			OpenTime: "07:00", CloseTime: "23:00", Timezone: "UTC",
		},
		{
			ID: 5, Name: "Main Auditorium", Category: model.CategoryEventSpace,
			TotalCapacity: 1, IsPooled: false,
			MinDurationMinutes: 30, MaxDurationMinutes: 480,
			OpenTime: "07:00", CloseTime: "23:00", Timezone: "UTC",
		},
	}
	for i := range rows {
		if err := gdb.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed facility %s: %v", rows[i].Name, err)
		}
	}

	units := []model.FacilityUnit{
		{ID: 10, FacilityID: 2, UnitName: "Court A", IsOperational: true},
		{ID: 11, FacilityID: 2, UnitName: "Court B", IsOperational: true},
		{ID: 12, FacilityID: 2, UnitName: "Court C", IsOperational: false},
		{ID: 50, FacilityID: 5, UnitName: "Main Stage", IsOperational: true},
	}
	for i := range units {
		if err := gdb.Create(&units[i]).Error; err != nil {
			t.Fatalf("seed unit %s: %v", units[i].UnitName, err)
		}
	}
}

func newBookingService(gdb *gorm.DB, now time.Time, bc broadcast.Broadcaster) *BookingService {
	cfg := testConfig()
	return NewBookingService(
		gdb,
		repository.NewGormFacilityRepository(gdb),
		repository.NewGormBookingRepository(gdb),
		policy.NewEvaluator(cfg),
		clock.Fixed{T: now},
		bc,
		cfg,
	)
}

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func uintPtr(v uint) *uint {
	return &v
}
