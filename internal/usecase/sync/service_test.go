package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rate-radar/internal/domain"
	"rate-radar/internal/usecase/alerting"
	"rate-radar/internal/usecase/telemetry"
)

type stubHotelRepo struct {
	hotels []domain.Hotel
}

func (s *stubHotelRepo) AddHotel(_ context.Context, h domain.Hotel) (domain.Hotel, error) {
	return h, nil
}
func (s *stubHotelRepo) ListHotels(context.Context) ([]domain.Hotel, error) { return s.hotels, nil }
func (s *stubHotelRepo) RenameHotel(context.Context, int64, string) error   { return nil }

type stubObservationRepo struct {
	saved   []domain.PriceObservation
	saveErr error
}

func (s *stubObservationRepo) SaveObservation(_ context.Context, obs domain.PriceObservation) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, obs)
	return nil
}
func (s *stubObservationRepo) LatestObservations(context.Context) ([]domain.PriceObservation, error) {
	return s.saved, nil
}
func (s *stubObservationRepo) ObservationsRange(context.Context, int64, time.Time, time.Time) ([]domain.PriceObservation, error) {
	return nil, nil
}

type stubCredentialRepo struct {
	cred       domain.PortalCredential
	failOn     domain.SyncStatus
	lastStatus domain.SyncStatus
	lastError  string
	lastSyncAt *time.Time
}

func (s *stubCredentialRepo) SaveCredential(context.Context, domain.PortalCredential) error {
	return nil
}
func (s *stubCredentialRepo) GetCredential(context.Context, int64) (domain.PortalCredential, error) {
	return s.cred, nil
}
func (s *stubCredentialRepo) DeleteCredential(context.Context, int64) error { return nil }
func (s *stubCredentialRepo) ListCredentialOwners(context.Context) ([]int64, error) {
	return []int64{s.cred.OwnerID}, nil
}
func (s *stubCredentialRepo) UpdateSyncStatus(_ context.Context, _ int64, status domain.SyncStatus, syncErr string, lastSyncAt *time.Time) error {
	if s.failOn != "" && status == s.failOn {
		return errors.New("connection refused")
	}
	s.lastStatus = status
	s.lastError = syncErr
	s.lastSyncAt = lastSyncAt
	return nil
}

type stubRunRepo struct {
	runningNow bool
	created    int
	finished   []domain.SyncRun
	nextID     int64
}

func (s *stubRunRepo) CreateRun(_ context.Context, run domain.SyncRun) (domain.SyncRun, error) {
	s.nextID++
	run.ID = s.nextID
	s.created++
	return run, nil
}
func (s *stubRunRepo) FinishRun(_ context.Context, run domain.SyncRun) error {
	s.finished = append(s.finished, run)
	return nil
}
func (s *stubRunRepo) HasRunningRun(context.Context, int64) (bool, error) {
	return s.runningNow, nil
}
func (s *stubRunRepo) ListRuns(context.Context, int64, int) ([]domain.SyncRun, error) {
	return s.finished, nil
}

type stubCustomPriceRepo struct {
	prices map[string]domain.CustomPrice
}

func priceKey(ownerID, hotelID int64, day time.Time) string {
	return fmt.Sprintf("%d|%d|%s", ownerID, hotelID, day.Format("2006-01-02"))
}

func (s *stubCustomPriceRepo) UpsertCustomPrice(context.Context, domain.CustomPrice) error {
	return nil
}
func (s *stubCustomPriceRepo) GetCustomPrice(_ context.Context, ownerID, hotelID int64, day time.Time) (domain.CustomPrice, error) {
	price, ok := s.prices[priceKey(ownerID, hotelID, day)]
	if !ok {
		return domain.CustomPrice{}, domain.ErrNotFound
	}
	return price, nil
}
func (s *stubCustomPriceRepo) ListCustomPrices(context.Context, int64) ([]domain.CustomPrice, error) {
	return nil, nil
}

type memAlertRepo struct {
	alerts []domain.Alert
}

func (m *memAlertRepo) ActiveAlert(_ context.Context, ownerID, hotelID int64, day time.Time) (domain.Alert, error) {
	for _, a := range m.alerts {
		if a.OwnerID == ownerID && a.HotelID == hotelID && a.Day.Equal(day) && a.Active {
			return a, nil
		}
	}
	return domain.Alert{}, domain.ErrNotFound
}
func (m *memAlertRepo) InsertAlert(_ context.Context, alert domain.Alert) (domain.Alert, error) {
	alert.ID = int64(len(m.alerts) + 1)
	m.alerts = append(m.alerts, alert)
	return alert, nil
}
func (m *memAlertRepo) UpdateAlert(context.Context, domain.Alert) error { return nil }
func (m *memAlertRepo) ListAlerts(context.Context, int64, bool) ([]domain.Alert, error) {
	return m.alerts, nil
}
func (m *memAlertRepo) DismissAlert(context.Context, int64) error { return nil }

type plainOpener struct{}

func (plainOpener) Open(sealed []byte) (string, error) { return string(sealed), nil }

// fakeScraper моделирует портал: фиксированная цена для всех ячеек,
// настраиваемые срывы отдельных ячеек и исход авторизации.
type fakeScraper struct {
	authOK    bool
	authErr   error
	initErr   error
	price     float64
	failCells map[string]bool
	searches  int
	shutdowns int
}

func cellKey(hotelName string, checkIn time.Time) string {
	return hotelName + "|" + checkIn.Format("2006-01-02")
}

func (f *fakeScraper) Initialize(context.Context) error { return f.initErr }
func (f *fakeScraper) Authenticate(context.Context, string, string) (bool, error) {
	return f.authOK, f.authErr
}
func (f *fakeScraper) Search(_ context.Context, hotelName string, checkIn, _ time.Time) (domain.SearchResult, error) {
	f.searches++
	if f.failCells[cellKey(hotelName, checkIn)] {
		return domain.SearchResult{}, errors.New("navigation timeout")
	}
	price := f.price
	return domain.SearchResult{Price: &price, Available: true}, nil
}
func (f *fakeScraper) Shutdown(context.Context) error {
	f.shutdowns++
	return nil
}

func newTestService(t *testing.T, scraper *fakeScraper, custom *stubCustomPriceRepo, alertRepo *memAlertRepo) (*Service, *stubObservationRepo, *stubRunRepo, *stubCredentialRepo) {
	t.Helper()
	hotels := &stubHotelRepo{}
	for i := 1; i <= 14; i++ {
		hotels.hotels = append(hotels.hotels, domain.Hotel{ID: int64(i), Name: fmt.Sprintf("Отель %d", i)})
	}
	observations := &stubObservationRepo{}
	credentials := &stubCredentialRepo{cred: domain.PortalCredential{OwnerID: 1, Username: "demo", SecretEnc: []byte("секрет")}}
	runs := &stubRunRepo{}
	if custom == nil {
		custom = &stubCustomPriceRepo{}
	}
	if alertRepo == nil {
		alertRepo = &memAlertRepo{}
	}
	alerts := alerting.NewService(alertRepo, nil, zerolog.Nop())

	service := NewService(
		hotels, observations, credentials, runs, custom, alerts,
		plainOpener{},
		func(int64) domain.Scraper { return scraper },
		telemetry.NewTracker(),
		20, "RUB", zerolog.Nop(),
	)
	service.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return service, observations, runs, credentials
}

func TestRunCompletesDespiteCellFailures(t *testing.T) {
	scraper := &fakeScraper{authOK: true, price: 210, failCells: map[string]bool{}}
	// Пять срывов в разных ячейках сетки 14×20.
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		scraper.failCells[cellKey("Отель 3", base.AddDate(0, 0, i*3))] = true
	}

	service, observations, runs, credentials := newTestService(t, scraper, nil, nil)
	if err := service.RunForOwner(context.Background(), 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if len(runs.finished) != 1 {
		t.Fatalf("ожидали одну завершённую запись запуска")
	}
	run := runs.finished[0]
	if run.Status != domain.RunStatusCompleted {
		t.Fatalf("срывы ячеек не должны ронять запуск, статус %s", run.Status)
	}
	if run.SuccessCount != 275 || run.ErrorCount != 5 {
		t.Fatalf("ожидали 275/5, получили %d/%d", run.SuccessCount, run.ErrorCount)
	}
	if len(observations.saved) != 280 {
		t.Fatalf("каждая ячейка должна быть записана, получили %d", len(observations.saved))
	}
	if credentials.lastStatus != domain.SyncStatusSuccess {
		t.Fatalf("ожидали статус success на учётке, получили %s", credentials.lastStatus)
	}
	if credentials.lastSyncAt == nil {
		t.Fatalf("ожидали отметку времени синхронизации")
	}
	if scraper.shutdowns != 1 {
		t.Fatalf("браузер должен быть остановлен ровно один раз")
	}

	// Сорванные ячейки записаны как недоступные, без цен.
	var unavailable int
	for _, obs := range observations.saved {
		if !obs.Available {
			unavailable++
			if obs.DisplayPrice != nil || obs.BasePrice != nil {
				t.Fatalf("недоступная ячейка не должна нести цены")
			}
		} else if obs.BasePrice == nil || *obs.BasePrice != 200 {
			t.Fatalf("ожидали базовую цену 200 для отображаемой 210")
		}
	}
	if unavailable != 5 {
		t.Fatalf("ожидали 5 недоступных ячеек, получили %d", unavailable)
	}
}

func TestAuthFailureFailsRunWithoutWrites(t *testing.T) {
	scraper := &fakeScraper{authOK: false, price: 210}
	service, observations, runs, credentials := newTestService(t, scraper, nil, nil)

	err := service.RunForOwner(context.Background(), 1)
	if err == nil {
		t.Fatalf("ожидали ошибку запуска")
	}
	if len(runs.finished) != 1 || runs.finished[0].Status != domain.RunStatusFailed {
		t.Fatalf("ожидали запуск в статусе failed")
	}
	if runs.finished[0].Error == "" {
		t.Fatalf("ожидали сообщение об ошибке в записи запуска")
	}
	if runs.finished[0].SuccessCount != 0 {
		t.Fatalf("ожидали нулевой успех при срыве авторизации")
	}
	if len(observations.saved) != 0 {
		t.Fatalf("при срыве авторизации сетка не должна обходиться")
	}
	if scraper.searches != 0 {
		t.Fatalf("поиск не должен вызываться без авторизации")
	}
	if credentials.lastStatus != domain.SyncStatusError || credentials.lastError == "" {
		t.Fatalf("ожидали ошибку на учётке, получили %s %q", credentials.lastStatus, credentials.lastError)
	}
	if scraper.shutdowns != 1 {
		t.Fatalf("браузер должен быть остановлен и при срыве")
	}
}

func TestSyncingStatusWriteFailureFinishesRun(t *testing.T) {
	scraper := &fakeScraper{authOK: true, price: 210}
	service, _, runs, credentials := newTestService(t, scraper, nil, nil)
	credentials.failOn = domain.SyncStatusSyncing

	err := service.RunForOwner(context.Background(), 1)
	if err == nil {
		t.Fatalf("ожидали ошибку запуска")
	}
	// Созданная запись обязана дойти до терминального статуса: иначе
	// проверка активного запуска заблокирует владельца навсегда.
	if runs.created != 1 || len(runs.finished) != 1 {
		t.Fatalf("ожидали одну созданную и одну завершённую запись, получили %d/%d", runs.created, len(runs.finished))
	}
	if runs.finished[0].Status != domain.RunStatusFailed {
		t.Fatalf("ожидали статус failed, получили %s", runs.finished[0].Status)
	}
	if credentials.lastStatus != domain.SyncStatusError {
		t.Fatalf("ожидали ошибку на учётке, получили %s", credentials.lastStatus)
	}
	if scraper.searches != 0 {
		t.Fatalf("браузер не должен запускаться при срыве отметки начала")
	}
}

func TestInitFailureShutsDownBrowser(t *testing.T) {
	scraper := &fakeScraper{authOK: true, price: 210, initErr: errors.New("chrome failed to start")}
	service, observations, runs, _ := newTestService(t, scraper, nil, nil)

	err := service.RunForOwner(context.Background(), 1)
	if err == nil {
		t.Fatalf("ожидали ошибку запуска")
	}
	if scraper.shutdowns != 1 {
		t.Fatalf("браузер должен гаситься и при срыве инициализации, остановок %d", scraper.shutdowns)
	}
	if len(runs.finished) != 1 || runs.finished[0].Status != domain.RunStatusFailed {
		t.Fatalf("ожидали запуск в статусе failed")
	}
	if len(observations.saved) != 0 {
		t.Fatalf("при срыве инициализации сетка не должна обходиться")
	}
}

func TestCycleRecordedDespiteStatusWriteFailure(t *testing.T) {
	scraper := &fakeScraper{authOK: true, price: 210}
	service, _, runs, credentials := newTestService(t, scraper, nil, nil)
	credentials.failOn = domain.SyncStatusSuccess

	err := service.RunForOwner(context.Background(), 1)
	if err == nil {
		t.Fatalf("ожидали ошибку записи статуса")
	}
	// Итог запуска уже зафиксирован как completed, цикл учтён, токен не завис.
	if len(runs.finished) != 1 || runs.finished[0].Status != domain.RunStatusCompleted {
		t.Fatalf("ожидали завершённый запуск")
	}
	// Учтённый цикл означает, что EndCycle был вызван и токен закрыт.
	stats := service.tracker.Stats()
	if stats.TotalCycles != 1 || stats.SuccessfulCycles != 1 {
		t.Fatalf("ожидали один учтённый успешный цикл, получили %+v", stats)
	}
}

func TestStorageFailureFailsRun(t *testing.T) {
	scraper := &fakeScraper{authOK: true, price: 210}
	service, observations, runs, credentials := newTestService(t, scraper, nil, nil)
	observations.saveErr = errors.New("connection refused")

	err := service.RunForOwner(context.Background(), 1)
	if err == nil {
		t.Fatalf("отказ хранилища должен ронять запуск")
	}
	if len(runs.finished) != 1 || runs.finished[0].Status != domain.RunStatusFailed {
		t.Fatalf("ожидали запуск в статусе failed")
	}
	if credentials.lastStatus != domain.SyncStatusError {
		t.Fatalf("ожидали статус error на учётке, получили %s", credentials.lastStatus)
	}
}

func TestRunSkippedWhileRunning(t *testing.T) {
	scraper := &fakeScraper{authOK: true, price: 210}
	service, _, runs, _ := newTestService(t, scraper, nil, nil)
	runs.runningNow = true

	if err := service.RunForOwner(context.Background(), 1); err != nil {
		t.Fatalf("пропуск не должен быть ошибкой: %v", err)
	}
	if runs.created != 0 {
		t.Fatalf("при активном запуске новый создаваться не должен")
	}
}

func TestCustomPriceTriggersAlert(t *testing.T) {
	scraper := &fakeScraper{authOK: true, price: 210}
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	custom := &stubCustomPriceRepo{prices: map[string]domain.CustomPrice{
		priceKey(1, 3, day): {OwnerID: 1, HotelID: 3, Day: day, Amount: 220},
	}}
	alertRepo := &memAlertRepo{}
	service, _, _, _ := newTestService(t, scraper, custom, alertRepo)

	if err := service.RunForOwner(context.Background(), 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(alertRepo.alerts) != 1 {
		t.Fatalf("ожидали одно уведомление, получили %d", len(alertRepo.alerts))
	}
	alert := alertRepo.alerts[0]
	if alert.CompetitorBasePrice != 200 || alert.Difference != -20 {
		t.Fatalf("ожидали базовую цену 200 и difference -20, получили %+v", alert)
	}
}
