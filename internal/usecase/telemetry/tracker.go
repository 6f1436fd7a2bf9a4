package telemetry

import (
	"fmt"
	"sync"
	"time"
)

// durationWindow — размер скользящего окна длительностей.
const durationWindow = 100

// Tracker — внутрипроцессная статистика по запускам синхронизации.
// Это наблюдательное состояние: источником истины по исходам остаются
// записи запусков в БД. Создаётся явно при старте процесса и передаётся
// по ссылке; при перезапуске обнуляется.
type Tracker struct {
	mu sync.Mutex

	total      int
	successful int
	failed     int
	items      int
	durations  []time.Duration

	inFlight  map[int64]time.Time
	nextToken int64
	startedAt time.Time

	// Now подменяется в тестах.
	Now func() time.Time
}

// Stats — снимок статистики.
type Stats struct {
	TotalCycles      int
	SuccessfulCycles int
	FailedCycles     int
	ItemsProcessed   int
	AverageDuration  time.Duration
	Uptime           time.Duration
}

// NewTracker создаёт трекер с отсчётом аптайма от текущего момента.
func NewTracker() *Tracker {
	t := &Tracker{
		inFlight: make(map[int64]time.Time),
		Now:      time.Now,
	}
	t.startedAt = t.Now()
	return t
}

// StartCycle фиксирует начало цикла и возвращает токен для EndCycle.
func (t *Tracker) StartCycle() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextToken++
	token := t.nextToken
	t.inFlight[token] = t.Now()
	return token
}

// EndCycle фиксирует завершение цикла. Неизвестный токен игнорируется.
func (t *Tracker) EndCycle(token int64, success bool, itemsProcessed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start, ok := t.inFlight[token]
	if !ok {
		return
	}
	delete(t.inFlight, token)

	t.total++
	if success {
		t.successful++
	} else {
		t.failed++
	}
	t.items += itemsProcessed

	t.durations = append(t.durations, t.Now().Sub(start))
	if len(t.durations) > durationWindow {
		t.durations = t.durations[len(t.durations)-durationWindow:]
	}
}

// Stats возвращает снимок статистики.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		TotalCycles:      t.total,
		SuccessfulCycles: t.successful,
		FailedCycles:     t.failed,
		ItemsProcessed:   t.items,
		AverageDuration:  t.averageLocked(),
		Uptime:           t.Now().Sub(t.startedAt),
	}
}

// FormattedStats возвращает человекочитаемый снимок статистики.
func (t *Tracker) FormattedStats() map[string]string {
	stats := t.Stats()
	successRate := "0%"
	if stats.TotalCycles > 0 {
		successRate = fmt.Sprintf("%.1f%%", float64(stats.SuccessfulCycles)/float64(stats.TotalCycles)*100)
	}
	return map[string]string{
		"total_cycles":     fmt.Sprintf("%d", stats.TotalCycles),
		"successful":       fmt.Sprintf("%d", stats.SuccessfulCycles),
		"failed":           fmt.Sprintf("%d", stats.FailedCycles),
		"items_processed":  fmt.Sprintf("%d", stats.ItemsProcessed),
		"success_rate":     successRate,
		"average_duration": stats.AverageDuration.Round(time.Second).String(),
		"uptime":           stats.Uptime.Round(time.Second).String(),
	}
}

// Reset обнуляет счётчики и окно длительностей.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = 0
	t.successful = 0
	t.failed = 0
	t.items = 0
	t.durations = nil
	t.inFlight = make(map[int64]time.Time)
	t.startedAt = t.Now()
}

func (t *Tracker) averageLocked() time.Duration {
	if len(t.durations) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range t.durations {
		sum += d
	}
	return sum / time.Duration(len(t.durations))
}
