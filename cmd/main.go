package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Leganyst/facility-booking/internal/broadcast"
	"github.com/Leganyst/facility-booking/internal/clock"
	"github.com/Leganyst/facility-booking/internal/config"
	"github.com/Leganyst/facility-booking/internal/db"
	"github.com/Leganyst/facility-booking/internal/httpapi"
	"github.com/Leganyst/facility-booking/internal/model"
	"github.com/Leganyst/facility-booking/internal/policy"
	"github.com/Leganyst/facility-booking/internal/reconciler"
	"github.com/Leganyst/facility-booking/internal/repository"
	"github.com/Leganyst/facility-booking/internal/service"
)

func main() {
	// 1. Локальный .env, если есть; в контейнере переменные уже в окружении.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	// 2. Конфигурация приложения и БД из env.
	cfg, err := config.LoadApp()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}

	// 3. Подключаемся к БД через GORM.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}

	// 4. Миграции моделей и индексов.
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 5. Репозитории (реализации на GORM).
	facilityRepo := repository.NewGormFacilityRepository(gormDB)
	bookingRepo := repository.NewGormBookingRepository(gormDB)

	// 6. Ядро: часы, политика, шина наблюдателей, сервисы.
	clk := clock.System{}
	evaluator := policy.NewEvaluator(cfg)
	hub := broadcast.NewHub(cfg.AllowedOrigins)

	bookingSvc := service.NewBookingService(gormDB, facilityRepo, bookingRepo, evaluator, clk, hub, cfg)
	availabilitySvc := service.NewAvailabilityService(gormDB, clk)
	scheduleSvc := service.NewScheduleService(facilityRepo, bookingRepo)

	// 7. Реконсилятор под advisory-замком Postgres.
	rec := reconciler.New(gormDB, facilityRepo, bookingRepo,
		db.NewPgAdvisoryLocker(gormDB), clk, hub, cfg)

	recCtx, stopRec := context.WithCancel(context.Background())
	go rec.Run(recCtx)

	// 8. HTTP-поверхность.
	handler := httpapi.NewHandler(gormDB, bookingSvc, availabilitySvc, scheduleSvc,
		facilityRepo, clk, rec.LastRunAt, cfg.MaxBookingHorizonDays)
	router := httpapi.NewRouter(handler, hub.ServeWS, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("facility booking API listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	// 9. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	stopRec()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	hub.Close()
}
