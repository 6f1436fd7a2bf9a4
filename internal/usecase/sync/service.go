package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rate-radar/internal/domain"
	"rate-radar/internal/infra/metrics"
	"rate-radar/internal/usecase/alerting"
	"rate-radar/internal/usecase/pricing"
	"rate-radar/internal/usecase/telemetry"
)

// ScraperFactory создаёт новый браузерный контекст для запуска одного владельца.
// Экземпляр принадлежит только этому запуску и не переиспользуется.
type ScraperFactory func(ownerID int64) domain.Scraper

// SecretOpener расшифровывает пароль портала. Открытый текст живёт только на
// время попытки авторизации.
type SecretOpener interface {
	Open(sealed []byte) (string, error)
}

// Service выполняет один запуск синхронизации: авторизация, обход полной сетки
// отели×даты, инкрементальная запись замеров, сверка с собственными ценами и
// учёт итога запуска.
type Service struct {
	hotels       domain.HotelRepo
	observations domain.ObservationRepo
	credentials  domain.CredentialRepo
	runs         domain.SyncRunRepo
	customPrices domain.CustomPriceRepo
	alerts       *alerting.Service
	secrets      SecretOpener
	newScraper   ScraperFactory
	tracker      *telemetry.Tracker
	horizonDays  int
	currency     string
	log          zerolog.Logger

	// Now подменяется в тестах.
	Now func() time.Time
}

// NewService создаёт сервис синхронизации.
func NewService(
	hotels domain.HotelRepo,
	observations domain.ObservationRepo,
	credentials domain.CredentialRepo,
	runs domain.SyncRunRepo,
	customPrices domain.CustomPriceRepo,
	alerts *alerting.Service,
	secrets SecretOpener,
	newScraper ScraperFactory,
	tracker *telemetry.Tracker,
	horizonDays int,
	currency string,
	log zerolog.Logger,
) *Service {
	return &Service{
		hotels:       hotels,
		observations: observations,
		credentials:  credentials,
		runs:         runs,
		customPrices: customPrices,
		alerts:       alerts,
		secrets:      secrets,
		newScraper:   newScraper,
		tracker:      tracker,
		horizonDays:  horizonDays,
		currency:     currency,
		log:          log,
		Now:          time.Now,
	}
}

// RunForOwner выполняет полный запуск для одного владельца. Пока предыдущий
// запуск не достиг терминального статуса, новый пропускается с логом.
func (s *Service) RunForOwner(ctx context.Context, ownerID int64) error {
	running, err := s.runs.HasRunningRun(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("проверка активного запуска: %w", err)
	}
	if running {
		s.log.Warn().Int64("owner", ownerID).Msg("sync: предыдущий запуск ещё идёт, пропускаем")
		return nil
	}

	cred, err := s.credentials.GetCredential(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("получение учётных данных: %w", err)
	}

	hotels, err := s.hotels.ListHotels(ctx)
	if err != nil {
		return fmt.Errorf("получение отелей: %w", err)
	}
	dates := s.trackedDates()

	startedAt := s.Now().UTC()
	run, err := s.runs.CreateRun(ctx, domain.SyncRun{
		OwnerID:     ownerID,
		Status:      domain.RunStatusRunning,
		TotalHotels: len(hotels),
		TotalDates:  len(dates),
		StartedAt:   startedAt,
	})
	if err != nil {
		return fmt.Errorf("создание записи запуска: %w", err)
	}

	// Запись запуска уже существует: любая ошибка дальше обязана довести её
	// до терминального статуса через failRun, иначе владелец навсегда
	// заблокируется проверкой активного запуска.
	token := s.tracker.StartCycle()
	runLog := s.log.With().Int64("owner", ownerID).Int64("run", run.ID).Logger()

	if err := s.credentials.UpdateSyncStatus(ctx, ownerID, domain.SyncStatusSyncing, "", nil); err != nil {
		return s.failRun(ctx, run, token, fmt.Sprintf("отметка начала синхронизации: %v", err))
	}

	scraper := s.newScraper(ownerID)
	// Остановка регистрируется до инициализации: браузер мог успеть
	// запуститься и на ошибочном пути.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := scraper.Shutdown(shutdownCtx); err != nil {
			runLog.Warn().Err(err).Msg("sync: ошибка остановки браузера")
		}
	}()
	if err := scraper.Initialize(ctx); err != nil {
		return s.failRun(ctx, run, token, fmt.Sprintf("инициализация браузера: %v", err))
	}

	// Пароль расшифровывается только в области видимости попытки входа.
	authenticated, err := func() (bool, error) {
		password, err := s.secrets.Open(cred.SecretEnc)
		if err != nil {
			return false, fmt.Errorf("расшифровка пароля: %w", err)
		}
		return scraper.Authenticate(ctx, cred.Username, password)
	}()
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return s.failRun(ctx, run, token, fmt.Sprintf("авторизация на портале: %v", err))
	}
	if !authenticated {
		metrics.AuthAttempts.WithLabelValues("rejected").Inc()
		return s.failRun(ctx, run, token, "авторизация на портале отклонена")
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()

	// Обход сетки: отель-мажорный порядок, даты внутри. Срыв одной ячейки
	// учитывается и не прерывает обход.
	for _, hotel := range hotels {
		for _, day := range dates {
			ok, err := s.processCell(ctx, scraper, ownerID, hotel, day)
			if err != nil {
				// Недоступное хранилище фатально для запуска, в отличие
				// от срыва ячейки.
				return s.failRun(ctx, run, token, fmt.Sprintf("запись замера: %v", err))
			}
			if ok {
				run.SuccessCount++
				metrics.IncScrapeCell(true)
			} else {
				run.ErrorCount++
				metrics.IncScrapeCell(false)
			}
		}
	}

	completedAt := s.Now().UTC()
	run.Status = domain.RunStatusCompleted
	run.CompletedAt = &completedAt
	run.DurationSeconds = completedAt.Sub(run.StartedAt).Seconds()
	if err := s.runs.FinishRun(ctx, run); err != nil {
		return s.failRun(ctx, run, token, fmt.Sprintf("фиксация итога запуска: %v", err))
	}

	// Цикл учитывается сразу после фиксации итога: исход запуска уже
	// терминален, и сбой записи статуса на учётке его не отменяет.
	s.tracker.EndCycle(token, true, run.SuccessCount+run.ErrorCount)
	metrics.ObserveSyncRun(string(domain.RunStatusCompleted), completedAt.Sub(run.StartedAt))

	if err := s.credentials.UpdateSyncStatus(ctx, ownerID, domain.SyncStatusSuccess, "", &completedAt); err != nil {
		return fmt.Errorf("отметка успешной синхронизации: %w", err)
	}
	runLog.Info().
		Int("success", run.SuccessCount).
		Int("errors", run.ErrorCount).
		Float64("seconds", run.DurationSeconds).
		Msg("sync: запуск завершён")
	return nil
}

// processCell обрабатывает одну ячейку сетки. Срыв скрейпа внутри ячейки
// завершается записью «недоступно» и возвратом false; ошибкой наружу
// отдаётся только отказ хранилища.
func (s *Service) processCell(ctx context.Context, scraper domain.Scraper, ownerID int64, hotel domain.Hotel, day time.Time) (bool, error) {
	checkOut := day.AddDate(0, 0, 1)
	result, err := scraper.Search(ctx, hotel.Name, day, checkOut)

	obs := domain.PriceObservation{
		HotelID:    hotel.ID,
		Day:        day,
		Currency:   s.currency,
		CapturedAt: s.Now().UTC(),
	}
	cellOK := err == nil
	if err != nil {
		s.log.Warn().Err(err).Int64("hotel", hotel.ID).Str("day", day.Format("2006-01-02")).Msg("sync: срыв ячейки")
	} else if result.Available && result.Price != nil {
		obs.Available = true
		obs.DisplayPrice = result.Price
		obs.BasePrice = pricing.BasePrice(result.Price)
	}

	if err := s.observations.SaveObservation(ctx, obs); err != nil {
		return false, fmt.Errorf("ячейка (%d, %s): %w", hotel.ID, day.Format("2006-01-02"), err)
	}
	if !cellOK {
		return false, nil
	}

	s.compareWithCustomPrice(ctx, ownerID, hotel.ID, day, obs.BasePrice)
	return true, nil
}

// compareWithCustomPrice запускает сверку, если у владельца задана своя цена
// на эту ячейку. Ошибки сверки логируются и не влияют на счётчики запуска.
func (s *Service) compareWithCustomPrice(ctx context.Context, ownerID, hotelID int64, day time.Time, basePrice *float64) {
	if basePrice == nil {
		return
	}
	custom, err := s.customPrices.GetCustomPrice(ctx, ownerID, hotelID, day)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Int64("hotel", hotelID).Msg("sync: не удалось получить собственную цену")
		}
		return
	}
	if err := s.alerts.Evaluate(ctx, ownerID, hotelID, day, custom.Amount, *basePrice); err != nil {
		s.log.Warn().Err(err).Int64("hotel", hotelID).Msg("sync: не удалось сверить цены")
	}
}

// failRun переводит запуск в failed и фиксирует ошибку на учётке.
// Частично записанные ячейки остаются в БД.
func (s *Service) failRun(ctx context.Context, run domain.SyncRun, token int64, message string) error {
	completedAt := s.Now().UTC()
	run.Status = domain.RunStatusFailed
	run.Error = message
	run.CompletedAt = &completedAt
	run.DurationSeconds = completedAt.Sub(run.StartedAt).Seconds()
	if err := s.runs.FinishRun(ctx, run); err != nil {
		s.log.Error().Err(err).Int64("run", run.ID).Msg("sync: не удалось зафиксировать срыв запуска")
	}
	if err := s.credentials.UpdateSyncStatus(ctx, run.OwnerID, domain.SyncStatusError, message, nil); err != nil {
		s.log.Error().Err(err).Int64("owner", run.OwnerID).Msg("sync: не удалось записать ошибку на учётке")
	}
	s.tracker.EndCycle(token, false, run.SuccessCount+run.ErrorCount)
	metrics.ObserveSyncRun(string(domain.RunStatusFailed), completedAt.Sub(run.StartedAt))
	return errors.New(message)
}

// trackedDates возвращает отслеживаемые даты: сегодня и далее по горизонту.
func (s *Service) trackedDates() []time.Time {
	now := s.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 0, s.horizonDays)
	for i := 0; i < s.horizonDays; i++ {
		dates = append(dates, today.AddDate(0, 0, i))
	}
	return dates
}
