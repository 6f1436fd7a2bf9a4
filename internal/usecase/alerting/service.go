package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rate-radar/internal/domain"
	"rate-radar/internal/infra/metrics"
)

// Notifier доставляет уведомление о новом проигрыше по цене.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert domain.Alert) error
}

// Service сравнивает собственную цену с базовой ценой конкурента и ведёт
// дедуплицированный набор активных уведомлений.
type Service struct {
	alerts   domain.AlertRepo
	notifier Notifier
	log      zerolog.Logger

	// Now подменяется в тестах.
	Now func() time.Time
}

// NewService создаёт сервис уведомлений. notifier может быть nil.
func NewService(alerts domain.AlertRepo, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{alerts: alerts, notifier: notifier, log: log, Now: time.Now}
}

// Evaluate сравнивает цены по ячейке. При difference >= 0 ничего не делает и
// не трогает существующее активное уведомление. При difference < 0 обновляет
// активное уведомление по ключу (владелец, отель, дата) либо создаёт новое.
func (s *Service) Evaluate(ctx context.Context, ownerID, hotelID int64, day time.Time, customPrice, competitorBasePrice float64) error {
	difference := competitorBasePrice - customPrice
	if difference >= 0 {
		return nil
	}

	existing, err := s.alerts.ActiveAlert(ctx, ownerID, hotelID, day)
	switch {
	case err == nil:
		existing.CompetitorBasePrice = competitorBasePrice
		existing.Difference = difference
		existing.CreatedAt = s.Now().UTC()
		if err := s.alerts.UpdateAlert(ctx, existing); err != nil {
			return fmt.Errorf("обновление уведомления: %w", err)
		}
		return nil
	case errors.Is(err, domain.ErrNotFound):
		created, err := s.alerts.InsertAlert(ctx, domain.Alert{
			OwnerID:             ownerID,
			HotelID:             hotelID,
			Day:                 day,
			AlertType:           domain.AlertTypeCompetitorCheaper,
			CustomPrice:         customPrice,
			CompetitorBasePrice: competitorBasePrice,
			Difference:          difference,
			Active:              true,
			CreatedAt:           s.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("создание уведомления: %w", err)
		}
		metrics.AlertsCreated.Inc()
		s.notify(ctx, created)
		return nil
	default:
		return fmt.Errorf("поиск активного уведомления: %w", err)
	}
}

// Dismiss гасит уведомление. Повторный вызов по погашенному безопасен.
func (s *Service) Dismiss(ctx context.Context, alertID int64) error {
	if err := s.alerts.DismissAlert(ctx, alertID); err != nil {
		return fmt.Errorf("гашение уведомления: %w", err)
	}
	return nil
}

// List возвращает уведомления владельца.
func (s *Service) List(ctx context.Context, ownerID int64, activeOnly bool) ([]domain.Alert, error) {
	return s.alerts.ListAlerts(ctx, ownerID, activeOnly)
}

func (s *Service) notify(ctx context.Context, alert domain.Alert) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAlert(ctx, alert); err != nil {
		s.log.Warn().Err(err).Int64("owner", alert.OwnerID).Int64("hotel", alert.HotelID).Msg("alerting: не удалось доставить уведомление")
	}
}
