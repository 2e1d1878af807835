package clock

import "time"

// Clock — источник текущего времени. Сервисы получают его инъекцией,
// чтобы тесты могли зафиксировать момент.
type Clock interface {
	Now() time.Time
}

// System отдаёт время в UTC, как и NowFunc у GORM.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed — застывшие часы для тестов.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T
}
