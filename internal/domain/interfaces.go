package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается репозиториями, когда запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// HotelRepo управляет отслеживаемыми отелями.
type HotelRepo interface {
	AddHotel(ctx context.Context, hotel Hotel) (Hotel, error)
	ListHotels(ctx context.Context) ([]Hotel, error)
	RenameHotel(ctx context.Context, hotelID int64, name string) error
}

// ObservationRepo управляет замерами цен. SaveObservation перезаписывает
// последнее состояние ячейки атомарно.
type ObservationRepo interface {
	SaveObservation(ctx context.Context, obs PriceObservation) error
	LatestObservations(ctx context.Context) ([]PriceObservation, error)
	ObservationsRange(ctx context.Context, hotelID int64, from, to time.Time) ([]PriceObservation, error)
}

// SessionRepo хранит по одному снимку сессии на владельца.
type SessionRepo interface {
	SaveSession(ctx context.Context, session PortalSession) error
	GetSession(ctx context.Context, ownerID int64) (PortalSession, error)
	DeleteSession(ctx context.Context, ownerID int64) error
}

// CredentialRepo управляет учётными данными портала.
type CredentialRepo interface {
	SaveCredential(ctx context.Context, cred PortalCredential) error
	GetCredential(ctx context.Context, ownerID int64) (PortalCredential, error)
	DeleteCredential(ctx context.Context, ownerID int64) error
	ListCredentialOwners(ctx context.Context) ([]int64, error)
	UpdateSyncStatus(ctx context.Context, ownerID int64, status SyncStatus, syncErr string, lastSyncAt *time.Time) error
}

// SyncRunRepo управляет запусками синхронизации.
type SyncRunRepo interface {
	CreateRun(ctx context.Context, run SyncRun) (SyncRun, error)
	FinishRun(ctx context.Context, run SyncRun) error
	HasRunningRun(ctx context.Context, ownerID int64) (bool, error)
	ListRuns(ctx context.Context, ownerID int64, limit int) ([]SyncRun, error)
}

// CustomPriceRepo управляет собственными ценами владельца.
type CustomPriceRepo interface {
	UpsertCustomPrice(ctx context.Context, price CustomPrice) error
	GetCustomPrice(ctx context.Context, ownerID, hotelID int64, day time.Time) (CustomPrice, error)
	ListCustomPrices(ctx context.Context, ownerID int64) ([]CustomPrice, error)
}

// AlertRepo управляет уведомлениями о проигрыше по цене.
type AlertRepo interface {
	ActiveAlert(ctx context.Context, ownerID, hotelID int64, day time.Time) (Alert, error)
	InsertAlert(ctx context.Context, alert Alert) (Alert, error)
	UpdateAlert(ctx context.Context, alert Alert) error
	ListAlerts(ctx context.Context, ownerID int64, activeOnly bool) ([]Alert, error)
	DismissAlert(ctx context.Context, alertID int64) error
}

// Scraper управляет одним браузерным контекстом на запуск. Жизненный цикл строго
// последовательный: Initialize → Authenticate → N × Search → Shutdown.
// Ошибки Search означают срыв одной ячейки; ошибки Initialize/Authenticate
// фатальны для всего запуска.
type Scraper interface {
	Initialize(ctx context.Context) error
	Authenticate(ctx context.Context, username, password string) (bool, error)
	Search(ctx context.Context, hotelName string, checkIn, checkOut time.Time) (SearchResult, error)
	Shutdown(ctx context.Context) error
}

// Cache используется для простых TTL-хранилищ и разовых блокировок.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) (bool, error)
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
