package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/facility-booking/internal/apperror"
	"github.com/Leganyst/facility-booking/internal/clock"
	"github.com/Leganyst/facility-booking/internal/model"
	"github.com/Leganyst/facility-booking/internal/repository"
	"github.com/Leganyst/facility-booking/internal/seed"
	"github.com/Leganyst/facility-booking/internal/service"
)

// Handler связывает HTTP-поверхность с прикладными сервисами.
// Транспорт здесь тонкий: разбор входа, перевод ошибок в статусы,
// никакой доменной логики.
type Handler struct {
	gdb          *gorm.DB
	bookings     *service.BookingService
	availability *service.AvailabilityService
	schedule     *service.ScheduleService
	facilities   repository.FacilityRepository
	clock        clock.Clock

	// Метка последнего цикла реконсилятора для health-пробы.
	lastCleanup func() time.Time

	horizonDays int
}

func NewHandler(
	gdb *gorm.DB,
	bookings *service.BookingService,
	availability *service.AvailabilityService,
	schedule *service.ScheduleService,
	facilities repository.FacilityRepository,
	clk clock.Clock,
	lastCleanup func() time.Time,
	horizonDays int,
) *Handler {
	return &Handler{
		gdb:          gdb,
		bookings:     bookings,
		availability: availability,
		schedule:     schedule,
		facilities:   facilities,
		clock:        clk,
		lastCleanup:  lastCleanup,
		horizonDays:  horizonDays,
	}
}

func parseUserType(s string) (model.UserType, error) {
	switch s {
	case "", string(model.UserTypeIndividual):
		return model.UserTypeIndividual, nil
	case string(model.UserTypeClub):
		return model.UserTypeClub, nil
	default:
		return "", apperror.BadRequest("unknown userType %q", s)
	}
}

// GET /assets
func (h *Handler) GetAssets(c *gin.Context) {
	userType, err := parseUserType(c.Query("userType"))
	if err != nil {
		respondError(c, err)
		return
	}

	views, err := h.availability.GetAllAssets(c.Request.Context(), c.Query("userName"), userType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /facilities/:id/units
func (h *Handler) ListUnits(c *gin.Context) {
	facilityID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperror.BadRequest("invalid facility id %q", c.Param("id")))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.facilities.GetByID(ctx, uint(facilityID)); err != nil {
		respondError(c, err)
		return
	}
	units, err := h.facilities.ListUnits(ctx, uint(facilityID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, units)
}

// GET /facilities/:id/schedule
func (h *Handler) GetSchedule(c *gin.Context) {
	facilityID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperror.BadRequest("invalid facility id %q", c.Param("id")))
		return
	}
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		respondError(c, apperror.BadRequest("date must be YYYY-MM-DD"))
		return
	}

	// Окно просмотра совпадает с горизонтом бронирования.
	today := h.clock.Now().Truncate(24 * time.Hour)
	last := today.AddDate(0, 0, h.horizonDays-1)
	if day.Before(today) || day.After(last) {
		respondError(c, apperror.Forbidden(
			"schedule is visible from %s to %s",
			today.Format("2006-01-02"), last.Format("2006-01-02"),
		))
		return
	}

	out, err := h.schedule.GetScheduleForDate(c.Request.Context(), uint(facilityID), datatypes.Date(day))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type reserveRequest struct {
	FacilityID uint      `json:"facilityId" binding:"required"`
	UnitID     *uint     `json:"unitId"`
	UserName   string    `json:"userName" binding:"required"`
	UserType   string    `json:"userType" binding:"required,oneof=individual club"`
	ClubName   string    `json:"clubName"`
	StartsAt   time.Time `json:"startsAt" binding:"required"`
	EndsAt     time.Time `json:"endsAt" binding:"required"`
}

// POST /reserve
func (h *Handler) Reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.bookings.Create(c.Request.Context(), service.CreateBookingInput{
		FacilityID: req.FacilityID,
		UnitID:     req.UnitID,
		UserName:   req.UserName,
		UserType:   model.UserType(req.UserType),
		ClubName:   req.ClubName,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type transitionRequest struct {
	BookingID string `json:"bookingId" binding:"required,uuid"`
	UserName  string `json:"userName" binding:"required"`
}

func (h *Handler) transition(
	c *gin.Context,
	apply func(ctx *gin.Context, id uuid.UUID, userName string) (*model.Booking, error),
) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := uuid.Parse(req.BookingID)
	if err != nil {
		respondError(c, apperror.BadRequest("invalid bookingId"))
		return
	}

	b, err := apply(c, id, req.UserName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /check-in
func (h *Handler) CheckIn(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id uuid.UUID, userName string) (*model.Booking, error) {
		return h.bookings.CheckIn(c.Request.Context(), id, userName)
	})
}

// POST /check-out
func (h *Handler) CheckOut(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id uuid.UUID, userName string) (*model.Booking, error) {
		return h.bookings.CheckOut(c.Request.Context(), id, userName)
	})
}

// POST /cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id uuid.UUID, userName string) (*model.Booking, error) {
		return h.bookings.Cancel(c.Request.Context(), id, userName)
	})
}

// GET /bookings/user/:userName
// Без параметров страницы отдаётся весь список; с ними — страничный
// конверт.
func (h *Handler) UserBookings(c *gin.Context) {
	userName := c.Param("userName")
	if userName == "" {
		respondError(c, apperror.BadRequest("userName is required"))
		return
	}

	bookings, err := h.bookings.ListUserBookings(c.Request.Context(), userName)
	if err != nil {
		respondError(c, err)
		return
	}

	pageQ, sizeQ := c.Query("page"), c.Query("pageSize")
	if pageQ == "" && sizeQ == "" {
		c.JSON(http.StatusOK, bookings)
		return
	}

	page, _ := strconv.Atoi(pageQ)
	size, _ := strconv.Atoi(sizeQ)
	c.JSON(http.StatusOK, Paginate(bookings, page, size))
}

// GET /system/health
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":     "ok",
		"database":   "up",
		"serverTime": h.clock.Now().Format(time.RFC3339),
	}

	if last := h.lastCleanup(); !last.IsZero() {
		body["lastCleanupRunAt"] = last.Format(time.RFC3339)
	} else {
		body["lastCleanupRunAt"] = nil
	}

	sqlDB, err := h.gdb.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		body["status"] = "degraded"
		body["database"] = "down"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// POST /system/seed
func (h *Handler) Seed(c *gin.Context) {
	if err := seed.Apply(c.Request.Context(), h.gdb); err != nil {
		respondError(c, apperror.Internal(err, "seed catalog"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "facility catalog seeded"})
}
