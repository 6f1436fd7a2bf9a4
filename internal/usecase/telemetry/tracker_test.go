package telemetry

import (
	"testing"
	"time"
)

func TestSuccessRateZeroTotal(t *testing.T) {
	tracker := NewTracker()
	formatted := tracker.FormattedStats()
	if formatted["success_rate"] != "0%" {
		t.Fatalf("ожидали 0%% без циклов, получили %q", formatted["success_rate"])
	}
}

func TestCycleAccounting(t *testing.T) {
	tracker := NewTracker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.Now = func() time.Time { return now }

	token := tracker.StartCycle()
	now = now.Add(30 * time.Second)
	tracker.EndCycle(token, true, 280)

	token = tracker.StartCycle()
	now = now.Add(10 * time.Second)
	tracker.EndCycle(token, false, 0)

	stats := tracker.Stats()
	if stats.TotalCycles != 2 || stats.SuccessfulCycles != 1 || stats.FailedCycles != 1 {
		t.Fatalf("неожиданные счётчики: %+v", stats)
	}
	if stats.ItemsProcessed != 280 {
		t.Fatalf("ожидали 280 обработанных ячеек, получили %d", stats.ItemsProcessed)
	}
	if stats.AverageDuration != 20*time.Second {
		t.Fatalf("ожидали среднюю длительность 20s, получили %v", stats.AverageDuration)
	}
	formatted := tracker.FormattedStats()
	if formatted["success_rate"] != "50.0%" {
		t.Fatalf("ожидали 50.0%%, получили %q", formatted["success_rate"])
	}
}

func TestUnknownTokenIgnored(t *testing.T) {
	tracker := NewTracker()
	tracker.EndCycle(999, true, 10)
	if stats := tracker.Stats(); stats.TotalCycles != 0 {
		t.Fatalf("неизвестный токен не должен учитываться")
	}
}

func TestDurationWindowBounded(t *testing.T) {
	tracker := NewTracker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.Now = func() time.Time { return now }

	for i := 0; i < durationWindow+20; i++ {
		token := tracker.StartCycle()
		now = now.Add(time.Second)
		tracker.EndCycle(token, true, 1)
	}
	if len(tracker.durations) != durationWindow {
		t.Fatalf("ожидали окно из %d длительностей, получили %d", durationWindow, len(tracker.durations))
	}
}

func TestReset(t *testing.T) {
	tracker := NewTracker()
	token := tracker.StartCycle()
	tracker.EndCycle(token, true, 5)
	tracker.Reset()
	stats := tracker.Stats()
	if stats.TotalCycles != 0 || stats.ItemsProcessed != 0 || stats.AverageDuration != 0 {
		t.Fatalf("ожидали обнуление после Reset: %+v", stats)
	}
}
