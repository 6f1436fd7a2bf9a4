package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rate-radar/internal/domain"
)

type stubAlertRepo struct {
	alerts []domain.Alert
	nextID int64
}

func (s *stubAlertRepo) key(a domain.Alert, ownerID, hotelID int64, day time.Time) bool {
	return a.OwnerID == ownerID && a.HotelID == hotelID && a.Day.Equal(day) && a.Active
}

func (s *stubAlertRepo) ActiveAlert(_ context.Context, ownerID, hotelID int64, day time.Time) (domain.Alert, error) {
	for _, a := range s.alerts {
		if s.key(a, ownerID, hotelID, day) {
			return a, nil
		}
	}
	return domain.Alert{}, domain.ErrNotFound
}

func (s *stubAlertRepo) InsertAlert(_ context.Context, alert domain.Alert) (domain.Alert, error) {
	s.nextID++
	alert.ID = s.nextID
	s.alerts = append(s.alerts, alert)
	return alert, nil
}

func (s *stubAlertRepo) UpdateAlert(_ context.Context, alert domain.Alert) error {
	for i, a := range s.alerts {
		if a.ID == alert.ID {
			s.alerts[i] = alert
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *stubAlertRepo) ListAlerts(_ context.Context, ownerID int64, activeOnly bool) ([]domain.Alert, error) {
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.OwnerID != ownerID {
			continue
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *stubAlertRepo) DismissAlert(_ context.Context, alertID int64) error {
	for i, a := range s.alerts {
		if a.ID == alertID {
			if s.alerts[i].Active {
				s.alerts[i].Active = false
				now := time.Now().UTC()
				s.alerts[i].DismissedAt = &now
			}
			return nil
		}
	}
	return nil
}

type captureNotifier struct {
	delivered []domain.Alert
}

func (n *captureNotifier) NotifyAlert(_ context.Context, alert domain.Alert) error {
	n.delivered = append(n.delivered, alert)
	return nil
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestEvaluateCreatesAlert(t *testing.T) {
	repo := &stubAlertRepo{}
	notifier := &captureNotifier{}
	service := NewService(repo, notifier, zerolog.Nop())

	if err := service.Evaluate(context.Background(), 1, 10, day(5), 220, 200); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.alerts) != 1 {
		t.Fatalf("ожидали одно уведомление, получили %d", len(repo.alerts))
	}
	alert := repo.alerts[0]
	if alert.Difference != -20 {
		t.Fatalf("ожидали difference -20, получили %v", alert.Difference)
	}
	if alert.AlertType != domain.AlertTypeCompetitorCheaper {
		t.Fatalf("ожидали тип competitor_cheaper, получили %q", alert.AlertType)
	}
	if len(notifier.delivered) != 1 {
		t.Fatalf("ожидали одну доставку уведомления")
	}
}

func TestEvaluateUpdatesInPlace(t *testing.T) {
	repo := &stubAlertRepo{}
	service := NewService(repo, nil, zerolog.Nop())

	if err := service.Evaluate(context.Background(), 1, 10, day(5), 220, 200); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := service.Evaluate(context.Background(), 1, 10, day(5), 220, 205); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.alerts) != 1 {
		t.Fatalf("ожидали обновление на месте, получили %d строк", len(repo.alerts))
	}
	if repo.alerts[0].Difference != -15 {
		t.Fatalf("ожидали difference -15, получили %v", repo.alerts[0].Difference)
	}
}

func TestEvaluateNonNegativeDifferenceNoTouch(t *testing.T) {
	repo := &stubAlertRepo{}
	service := NewService(repo, nil, zerolog.Nop())

	// Несвязанное активное уведомление по другой дате.
	if err := service.Evaluate(context.Background(), 1, 10, day(4), 220, 210); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	before := repo.alerts[0]

	if err := service.Evaluate(context.Background(), 1, 10, day(5), 220, 230); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.alerts) != 1 {
		t.Fatalf("difference > 0 не должен создавать уведомление")
	}
	if repo.alerts[0] != before {
		t.Fatalf("несвязанное уведомление не должно меняться")
	}
}

func TestDismissIdempotent(t *testing.T) {
	repo := &stubAlertRepo{}
	service := NewService(repo, nil, zerolog.Nop())

	if err := service.Evaluate(context.Background(), 1, 10, day(5), 220, 200); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	id := repo.alerts[0].ID
	if err := service.Dismiss(context.Background(), id); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.alerts[0].Active {
		t.Fatalf("ожидали active=false после гашения")
	}
	dismissedAt := repo.alerts[0].DismissedAt
	if dismissedAt == nil {
		t.Fatalf("ожидали отметку времени гашения")
	}
	if err := service.Dismiss(context.Background(), id); err != nil {
		t.Fatalf("повторное гашение должно быть безопасно: %v", err)
	}
	if repo.alerts[0].DismissedAt != dismissedAt {
		t.Fatalf("повторное гашение не должно менять отметку времени")
	}
}

func TestFreshAlertAfterDismissal(t *testing.T) {
	repo := &stubAlertRepo{}
	service := NewService(repo, nil, zerolog.Nop())

	if err := service.Evaluate(context.Background(), 1, 10, day(5), 220, 200); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := service.Dismiss(context.Background(), repo.alerts[0].ID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Условие повторилось после гашения: появляется новая активная строка.
	if err := service.Evaluate(context.Background(), 1, 10, day(5), 220, 195); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.alerts) != 2 {
		t.Fatalf("ожидали новое уведомление после гашения, получили %d строк", len(repo.alerts))
	}
	if !repo.alerts[1].Active || repo.alerts[0].Active {
		t.Fatalf("ожидали одну активную и одну погашенную строку")
	}
}
