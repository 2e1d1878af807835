package broadcast

// Единственное событие шины: наблюдатели перечитывают авторитетное
// состояние сами, полезной нагрузки нет.
const EventAssetsUpdated = "assets:updated"

// Broadcaster — fire-and-forget рассылка наблюдателям. Ошибки доставки
// вызывающему не возвращаются, порядок между наблюдателями не гарантируется.
type Broadcaster interface {
	Broadcast(event string)
}

// Nop — заглушка для тестов и для запуска без живых наблюдателей.
type Nop struct{}

func (Nop) Broadcast(string) {}

// Recorder копит события — тестовый наблюдатель.
type Recorder struct {
	Events []string
}

func (r *Recorder) Broadcast(event string) {
	r.Events = append(r.Events, event)
}
