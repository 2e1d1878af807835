package reconciler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/facility-booking/internal/broadcast"
	"github.com/Leganyst/facility-booking/internal/clock"
	"github.com/Leganyst/facility-booking/internal/config"
	"github.com/Leganyst/facility-booking/internal/db"
	"github.com/Leganyst/facility-booking/internal/model"
	"github.com/Leganyst/facility-booking/internal/repository"
)

// Сигнал "что-то началось" ловится в хвостовом окне этой длины.
const justStartedWindow = time.Minute

// Reconciler — фоновый уборщик жизненного цикла: отпускает no-show
// и закрывает просроченные сессии. В кластере цикл исполняет один
// экземпляр: перед работой берётся advisory-замок, кто не взял — молча
// пропускает тик.
type Reconciler struct {
	gdb         *gorm.DB
	facilities  repository.FacilityRepository
	bookings    repository.BookingRepository
	locker      db.AdvisoryLocker
	clock       clock.Clock
	broadcaster broadcast.Broadcaster

	grace    time.Duration
	interval time.Duration
	lockKey  int64

	// Метка последнего цикла для health-проб: пишет только сам
	// реконсилятор, читают все.
	lastRun atomic.Int64
}

func New(
	gdb *gorm.DB,
	facilities repository.FacilityRepository,
	bookings repository.BookingRepository,
	locker db.AdvisoryLocker,
	clk clock.Clock,
	bc broadcast.Broadcaster,
	cfg *config.App,
) *Reconciler {
	return &Reconciler{
		gdb:         gdb,
		facilities:  facilities,
		bookings:    bookings,
		locker:      locker,
		clock:       clk,
		broadcaster: bc,
		grace:       cfg.NoShowGrace(),
		interval:    cfg.CleanupInterval(),
		lockKey:     cfg.CleanupLockID,
	}
}

// LastRunAt — когда цикл завершался в последний раз; нулевое время,
// если ещё ни разу.
func (r *Reconciler) LastRunAt() time.Time {
	nanos := r.lastRun.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}

// Run крутит циклы на фиксированном тике до отмены контекста.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunCycle(ctx); err != nil {
				log.Printf("reconciler: cycle: %v", err)
			}
		}
	}
}

// RunCycle — одна итерация уборки под межпроцессным замком.
func (r *Reconciler) RunCycle(ctx context.Context) error {
	acquired, err := r.locker.TryLock(ctx, r.lockKey)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := r.locker.Unlock(ctx, r.lockKey); err != nil {
			log.Printf("reconciler: unlock %d: %v", r.lockKey, err)
		}
	}()

	now := r.clock.Now()

	released := r.releaseNoShows(ctx, now)
	completed := r.completeExpired(ctx, now)

	started, err := r.bookings.AnyStartedBetween(ctx, now.Add(-justStartedWindow), now)
	if err != nil {
		log.Printf("reconciler: just-started probe: %v", err)
	}

	r.lastRun.Store(now.UnixNano())

	if released > 0 || completed > 0 || started {
		r.broadcaster.Broadcast(broadcast.EventAssetsUpdated)
	}
	return nil
}

// releaseNoShows отпускает scheduled-брони, чьё начало ушло за грейс.
func (r *Reconciler) releaseNoShows(ctx context.Context, now time.Time) int {
	candidates, err := r.bookings.ListNoShows(ctx, now.Add(-r.grace))
	if err != nil {
		log.Printf("reconciler: list no-shows: %v", err)
		return 0
	}

	count := 0
	for _, c := range candidates {
		err := r.transition(ctx, c, func(b *model.Booking) (model.BookingStatus, bool) {
			// Пользователь мог успеть отметиться или отменить.
			if b.Status != model.BookingStatusScheduled {
				return "", false
			}
			return model.BookingStatusReleased, true
		})
		switch {
		case err == nil:
			count++
		case errors.Is(err, errSkipped):
		default:
			log.Printf("reconciler: release no-show %s: %v", c.ID, err)
		}
	}
	if count > 0 {
		log.Printf("reconciler: released %d no-show booking(s)", count)
	}
	return count
}

// completeExpired закрывает checked_in-сессии с наступившим концом.
func (r *Reconciler) completeExpired(ctx context.Context, now time.Time) int {
	candidates, err := r.bookings.ListExpired(ctx, now)
	if err != nil {
		log.Printf("reconciler: list expired: %v", err)
		return 0
	}

	count := 0
	for _, c := range candidates {
		err := r.transition(ctx, c, func(b *model.Booking) (model.BookingStatus, bool) {
			if b.Status != model.BookingStatusCheckedIn || b.EndsAt.After(now) {
				return "", false
			}
			return model.BookingStatusCompleted, true
		})
		switch {
		case err == nil:
			count++
		case errors.Is(err, errSkipped):
		default:
			log.Printf("reconciler: complete expired %s: %v", c.ID, err)
		}
	}
	if count > 0 {
		log.Printf("reconciler: completed %d expired session(s)", count)
	}
	return count
}

// errSkipped — кандидат ушёл из-под условия между выборкой и замком.
var errSkipped = errors.New("candidate no longer eligible")

// transition перепроверяет кандидата под замками (фасилити → бронь)
// и применяет решение decide. Гонка с пользовательским переходом
// разрешается в пользу того, кто взял замок первым.
func (r *Reconciler) transition(
	ctx context.Context,
	c repository.CleanupCandidate,
	decide func(b *model.Booking) (model.BookingStatus, bool),
) error {
	err := r.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		facilities := r.facilities.WithTx(tx)
		bookings := r.bookings.WithTx(tx)

		if _, err := facilities.LockByID(ctx, c.FacilityID); err != nil {
			return err
		}
		b, err := bookings.LockByID(ctx, c.ID)
		if err != nil {
			return err
		}

		next, ok := decide(b)
		if !ok {
			return errSkipped
		}
		return bookings.UpdateStatus(ctx, b.ID, next)
	})
	return err
}
