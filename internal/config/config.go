package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// App — прикладные настройки ядра бронирования.
// Политика по умолчанию соответствует продуктовым константам;
// всё переопределяется через окружение.
type App struct {
	HTTPAddr       string   `envconfig:"HTTP_ADDR" default:":8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	SlotSizeMinutes    int `envconfig:"SLOT_SIZE_MINUTES" default:"30"`
	NoShowGraceMinutes int `envconfig:"NO_SHOW_GRACE_MINUTES" default:"15"`
	MinSessionMinutes  int `envconfig:"MIN_SESSION_MINUTES" default:"30"`

	// Горизонт клубов задаётся отдельно (продукт декларирует 30 дней);
	// при отсутствии значения он равен 7 дням и от MAX_BOOKING_HORIZON_DAYS
	// не зависит.
	MaxBookingHorizonDays  int `envconfig:"MAX_BOOKING_HORIZON_DAYS" default:"7"`
	ClubBookingHorizonDays int `envconfig:"CLUB_BOOKING_HORIZON_DAYS" default:"7"`

	CleanupIntervalSec int   `envconfig:"CLEANUP_INTERVAL_SEC" default:"60"`
	CleanupLockID      int64 `envconfig:"CLEANUP_LOCK_ID" default:"1001"`

	// Закрытый реестр клубов.
	ValidClubs []string `envconfig:"VALID_CLUBS" default:"Roobooru,Chess Circle,Debate Union,Drama Society"`
}

func LoadApp() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *App) SlotSize() time.Duration {
	return time.Duration(c.SlotSizeMinutes) * time.Minute
}

func (c *App) NoShowGrace() time.Duration {
	return time.Duration(c.NoShowGraceMinutes) * time.Minute
}

func (c *App) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSec) * time.Second
}

// ClubSet возвращает реестр клубов в виде множества.
func (c *App) ClubSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.ValidClubs))
	for _, name := range c.ValidClubs {
		set[name] = struct{}{}
	}
	return set
}
