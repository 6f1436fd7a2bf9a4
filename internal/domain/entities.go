package domain

import "time"

// Hotel описывает отслеживаемый объект на партнёрском портале.
type Hotel struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	PortalKey  string    `json:"portal_key"`
	GroupLabel string    `json:"group_label,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PriceObservation — результат одного замера цены по ячейке (отель, дата).
// Available=false означает, что обе цены отсутствуют.
type PriceObservation struct {
	HotelID      int64     `json:"hotel_id"`
	Day          time.Time `json:"day"`
	DisplayPrice *float64  `json:"display_price"`
	BasePrice    *float64  `json:"base_price"`
	Currency     string    `json:"currency"`
	Available    bool      `json:"available"`
	CapturedAt   time.Time `json:"captured_at"`
}

// PortalSession хранит снимок авторизованного состояния браузера для владельца.
// State — непрозрачный JSON с cookies портала.
type PortalSession struct {
	OwnerID   int64
	State     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SyncStatus описывает состояние последней синхронизации по учётке.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// PortalCredential — учётные данные портала одного владельца.
// SecretEnc содержит пароль, зашифрованный AES-GCM (nonce+ciphertext).
type PortalCredential struct {
	OwnerID    int64
	Username   string
	SecretEnc  []byte
	LastSyncAt *time.Time
	SyncStatus SyncStatus
	SyncError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RunStatus описывает состояние запуска синхронизации.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SyncRun — один запуск полного обхода сетки отели×даты для владельца.
// После перехода в completed/failed запись больше не изменяется.
type SyncRun struct {
	ID              int64      `json:"id"`
	OwnerID         int64      `json:"owner_id"`
	Status          RunStatus  `json:"status"`
	TotalHotels     int        `json:"total_hotels"`
	TotalDates      int        `json:"total_dates"`
	SuccessCount    int        `json:"success_count"`
	ErrorCount      int        `json:"error_count"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	DurationSeconds float64    `json:"duration_seconds"`
}

// CustomPrice — собственная цена владельца по ячейке (отель, дата).
type CustomPrice struct {
	OwnerID   int64     `json:"owner_id"`
	HotelID   int64     `json:"hotel_id"`
	Day       time.Time `json:"day"`
	Amount    float64   `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AlertTypeCompetitorCheaper — конкурент после снятия наценки дешевле собственной цены.
const AlertTypeCompetitorCheaper = "competitor_cheaper"

// Alert — активное уведомление о проигрыше по цене. Difference < 0 по построению.
type Alert struct {
	ID                  int64      `json:"id"`
	OwnerID             int64      `json:"owner_id"`
	HotelID             int64      `json:"hotel_id"`
	Day                 time.Time  `json:"day"`
	AlertType           string     `json:"alert_type"`
	CustomPrice         float64    `json:"custom_price"`
	CompetitorBasePrice float64    `json:"competitor_base_price"`
	Difference          float64    `json:"difference"`
	Active              bool       `json:"active"`
	CreatedAt           time.Time  `json:"created_at"`
	DismissedAt         *time.Time `json:"dismissed_at,omitempty"`
}

// SearchResult — итог поиска цены по одной ячейке. Отсутствие совпадения или
// нераспознанная цена — это Available=false, а не ошибка.
type SearchResult struct {
	Price     *float64
	Available bool
}
