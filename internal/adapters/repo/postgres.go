package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rate-radar/internal/domain"
	"rate-radar/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.HotelRepo       = (*Postgres)(nil)
	_ domain.ObservationRepo = (*Postgres)(nil)
	_ domain.SessionRepo     = (*Postgres)(nil)
	_ domain.CredentialRepo  = (*Postgres)(nil)
	_ domain.SyncRunRepo     = (*Postgres)(nil)
	_ domain.CustomPriceRepo = (*Postgres)(nil)
	_ domain.AlertRepo       = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// AddHotel создаёт отслеживаемый отель. Повторное добавление по тому же
// portal_key возвращает существующую запись.
func (p *Postgres) AddHotel(ctx context.Context, hotel domain.Hotel) (domain.Hotel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO hotels (name, portal_key, group_label)
VALUES ($1, $2, NULLIF($3,''))
ON CONFLICT (portal_key) DO UPDATE SET portal_key = EXCLUDED.portal_key
RETURNING id, name, portal_key, COALESCE(group_label,''), created_at
`, hotel.Name, hotel.PortalKey, hotel.GroupLabel).
		Scan(&hotel.ID, &hotel.Name, &hotel.PortalKey, &hotel.GroupLabel, &hotel.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "hotels_upsert", "hotels", start, err)
	if err != nil {
		return domain.Hotel{}, err
	}
	return hotel, nil
}

// ListHotels возвращает все отслеживаемые отели.
func (p *Postgres) ListHotels(ctx context.Context) ([]domain.Hotel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, name, portal_key, COALESCE(group_label,''), created_at
FROM hotels
ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "hotels_list", "hotels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hotels []domain.Hotel
	for rows.Next() {
		var h domain.Hotel
		if err := rows.Scan(&h.ID, &h.Name, &h.PortalKey, &h.GroupLabel, &h.CreatedAt); err != nil {
			return nil, err
		}
		hotels = append(hotels, h)
	}
	return hotels, rows.Err()
}

// RenameHotel переименовывает отель. Это единственная разрешённая мутация
// после создания.
func (p *Postgres) RenameHotel(ctx context.Context, hotelID int64, name string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE hotels SET name = $2 WHERE id = $1`, hotelID, name)
	metrics.ObserveNetworkRequest("postgres", "hotels_rename", "hotels", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveObservation атомарно перезаписывает последнее состояние ячейки.
func (p *Postgres) SaveObservation(ctx context.Context, obs domain.PriceObservation) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var display, base sql.NullFloat64
	if obs.DisplayPrice != nil {
		display = sql.NullFloat64{Float64: *obs.DisplayPrice, Valid: true}
	}
	if obs.BasePrice != nil {
		base = sql.NullFloat64{Float64: *obs.BasePrice, Valid: true}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO price_observations (hotel_id, day, display_price, base_price, currency, available, captured_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (hotel_id, day) DO UPDATE SET
  display_price = EXCLUDED.display_price,
  base_price = EXCLUDED.base_price,
  currency = EXCLUDED.currency,
  available = EXCLUDED.available,
  captured_at = EXCLUDED.captured_at
`, obs.HotelID, obs.Day, display, base, obs.Currency, obs.Available, obs.CapturedAt)
	metrics.ObserveNetworkRequest("postgres", "observations_upsert", "price_observations", start, err)
	return err
}

// LatestObservations возвращает последнее состояние всех ячеек.
func (p *Postgres) LatestObservations(ctx context.Context) ([]domain.PriceObservation, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT hotel_id, day, display_price, base_price, currency, available, captured_at
FROM price_observations
ORDER BY hotel_id, day
`)
	metrics.ObserveNetworkRequest("postgres", "observations_latest", "price_observations", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// ObservationsRange возвращает замеры отеля в диапазоне дат включительно.
func (p *Postgres) ObservationsRange(ctx context.Context, hotelID int64, from, to time.Time) ([]domain.PriceObservation, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT hotel_id, day, display_price, base_price, currency, available, captured_at
FROM price_observations
WHERE hotel_id = $1 AND day BETWEEN $2 AND $3
ORDER BY day
`, hotelID, from, to)
	metrics.ObserveNetworkRequest("postgres", "observations_range", "price_observations", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

func scanObservations(rows pgx.Rows) ([]domain.PriceObservation, error) {
	var observations []domain.PriceObservation
	for rows.Next() {
		var (
			obs           domain.PriceObservation
			display, base sql.NullFloat64
		)
		if err := rows.Scan(&obs.HotelID, &obs.Day, &display, &base, &obs.Currency, &obs.Available, &obs.CapturedAt); err != nil {
			return nil, err
		}
		if display.Valid {
			v := display.Float64
			obs.DisplayPrice = &v
		}
		if base.Valid {
			v := base.Float64
			obs.BasePrice = &v
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// SaveSession перезаписывает сессию владельца.
func (p *Postgres) SaveSession(ctx context.Context, sess domain.PortalSession) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO portal_sessions (owner_id, state, created_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (owner_id) DO UPDATE SET
  state = EXCLUDED.state,
  created_at = EXCLUDED.created_at,
  expires_at = EXCLUDED.expires_at
`, sess.OwnerID, sess.State, sess.CreatedAt, sess.ExpiresAt)
	metrics.ObserveNetworkRequest("postgres", "sessions_upsert", "portal_sessions", start, err)
	return err
}

// GetSession возвращает сессию владельца.
func (p *Postgres) GetSession(ctx context.Context, ownerID int64) (domain.PortalSession, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var sess domain.PortalSession
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT owner_id, state, created_at, expires_at
FROM portal_sessions
WHERE owner_id = $1
`, ownerID).Scan(&sess.OwnerID, &sess.State, &sess.CreatedAt, &sess.ExpiresAt)
	metrics.ObserveNetworkRequest("postgres", "sessions_get", "portal_sessions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PortalSession{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PortalSession{}, err
	}
	return sess, nil
}

// DeleteSession удаляет сессию владельца.
func (p *Postgres) DeleteSession(ctx context.Context, ownerID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM portal_sessions WHERE owner_id = $1`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "sessions_delete", "portal_sessions", start, err)
	return err
}

// SaveCredential перезаписывает учётные данные владельца.
func (p *Postgres) SaveCredential(ctx context.Context, cred domain.PortalCredential) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO portal_credentials (owner_id, username, secret_enc, sync_status)
VALUES ($1, $2, $3, 'idle')
ON CONFLICT (owner_id) DO UPDATE SET
  username = EXCLUDED.username,
  secret_enc = EXCLUDED.secret_enc,
  updated_at = now()
`, cred.OwnerID, cred.Username, cred.SecretEnc)
	metrics.ObserveNetworkRequest("postgres", "credentials_upsert", "portal_credentials", start, err)
	return err
}

// GetCredential возвращает учётные данные владельца.
func (p *Postgres) GetCredential(ctx context.Context, ownerID int64) (domain.PortalCredential, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		cred       domain.PortalCredential
		lastSyncAt sql.NullTime
		syncError  sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT owner_id, username, secret_enc, last_sync_at, sync_status, sync_error, created_at, updated_at
FROM portal_credentials
WHERE owner_id = $1
`, ownerID).Scan(&cred.OwnerID, &cred.Username, &cred.SecretEnc, &lastSyncAt, &cred.SyncStatus, &syncError, &cred.CreatedAt, &cred.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "credentials_get", "portal_credentials", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PortalCredential{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PortalCredential{}, err
	}
	if lastSyncAt.Valid {
		ts := lastSyncAt.Time
		cred.LastSyncAt = &ts
	}
	if syncError.Valid {
		cred.SyncError = syncError.String
	}
	return cred, nil
}

// DeleteCredential удаляет учётные данные владельца.
func (p *Postgres) DeleteCredential(ctx context.Context, ownerID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM portal_credentials WHERE owner_id = $1`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "credentials_delete", "portal_credentials", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListCredentialOwners возвращает владельцев с сохранёнными учётными данными.
func (p *Postgres) ListCredentialOwners(ctx context.Context) ([]int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT owner_id FROM portal_credentials ORDER BY owner_id`)
	metrics.ObserveNetworkRequest("postgres", "credentials_owners", "portal_credentials", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// UpdateSyncStatus записывает состояние последней синхронизации на учётке.
func (p *Postgres) UpdateSyncStatus(ctx context.Context, ownerID int64, status domain.SyncStatus, syncErr string, lastSyncAt *time.Time) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var last sql.NullTime
	if lastSyncAt != nil {
		last = sql.NullTime{Time: *lastSyncAt, Valid: true}
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE portal_credentials SET
  sync_status = $2,
  sync_error = NULLIF($3,''),
  last_sync_at = COALESCE($4, last_sync_at),
  updated_at = now()
WHERE owner_id = $1
`, ownerID, status, syncErr, last)
	metrics.ObserveNetworkRequest("postgres", "credentials_sync_status", "portal_credentials", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateRun создаёт запись запуска синхронизации.
func (p *Postgres) CreateRun(ctx context.Context, run domain.SyncRun) (domain.SyncRun, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO sync_runs (owner_id, status, total_hotels, total_dates, started_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, run.OwnerID, run.Status, run.TotalHotels, run.TotalDates, run.StartedAt).Scan(&run.ID)
	metrics.ObserveNetworkRequest("postgres", "runs_insert", "sync_runs", start, err)
	if err != nil {
		return domain.SyncRun{}, err
	}
	return run, nil
}

// FinishRun фиксирует терминальный статус запуска. Уже терминальная запись
// не изменяется.
func (p *Postgres) FinishRun(ctx context.Context, run domain.SyncRun) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE sync_runs SET
  status = $2,
  success_count = $3,
  error_count = $4,
  error = NULLIF($5,''),
  completed_at = $6,
  duration_seconds = $7
WHERE id = $1 AND status IN ('pending','running')
`, run.ID, run.Status, run.SuccessCount, run.ErrorCount, run.Error, completedAt, run.DurationSeconds)
	metrics.ObserveNetworkRequest("postgres", "runs_finish", "sync_runs", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// HasRunningRun сообщает, идёт ли сейчас запуск для владельца.
func (p *Postgres) HasRunningRun(ctx context.Context, ownerID int64) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM sync_runs WHERE owner_id = $1 AND status IN ('pending','running'))
`, ownerID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "runs_has_running", "sync_runs", start, err)
	return exists, err
}

// ListRuns возвращает историю запусков владельца, новые первыми.
func (p *Postgres) ListRuns(ctx context.Context, ownerID int64, limit int) ([]domain.SyncRun, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, owner_id, status, total_hotels, total_dates, success_count, error_count,
       COALESCE(error,''), started_at, completed_at, COALESCE(duration_seconds, 0)
FROM sync_runs
WHERE owner_id = $1
ORDER BY started_at DESC
LIMIT $2
`, ownerID, limit)
	metrics.ObserveNetworkRequest("postgres", "runs_list", "sync_runs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		var (
			run         domain.SyncRun
			completedAt sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.OwnerID, &run.Status, &run.TotalHotels, &run.TotalDates,
			&run.SuccessCount, &run.ErrorCount, &run.Error, &run.StartedAt, &completedAt, &run.DurationSeconds); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			ts := completedAt.Time
			run.CompletedAt = &ts
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpsertCustomPrice сохраняет собственную цену владельца по ключу
// (владелец, отель, дата).
func (p *Postgres) UpsertCustomPrice(ctx context.Context, price domain.CustomPrice) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO custom_prices (owner_id, hotel_id, day, amount)
VALUES ($1, $2, $3, $4)
ON CONFLICT (owner_id, hotel_id, day) DO UPDATE SET
  amount = EXCLUDED.amount,
  updated_at = now()
`, price.OwnerID, price.HotelID, price.Day, price.Amount)
	metrics.ObserveNetworkRequest("postgres", "custom_prices_upsert", "custom_prices", start, err)
	return err
}

// GetCustomPrice возвращает собственную цену по ячейке.
func (p *Postgres) GetCustomPrice(ctx context.Context, ownerID, hotelID int64, day time.Time) (domain.CustomPrice, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var price domain.CustomPrice
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT owner_id, hotel_id, day, amount, updated_at
FROM custom_prices
WHERE owner_id = $1 AND hotel_id = $2 AND day = $3
`, ownerID, hotelID, day).Scan(&price.OwnerID, &price.HotelID, &price.Day, &price.Amount, &price.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "custom_prices_get", "custom_prices", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CustomPrice{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CustomPrice{}, err
	}
	return price, nil
}

// ListCustomPrices возвращает все собственные цены владельца.
func (p *Postgres) ListCustomPrices(ctx context.Context, ownerID int64) ([]domain.CustomPrice, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT owner_id, hotel_id, day, amount, updated_at
FROM custom_prices
WHERE owner_id = $1
ORDER BY hotel_id, day
`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "custom_prices_list", "custom_prices", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []domain.CustomPrice
	for rows.Next() {
		var price domain.CustomPrice
		if err := rows.Scan(&price.OwnerID, &price.HotelID, &price.Day, &price.Amount, &price.UpdatedAt); err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	return prices, rows.Err()
}

// ActiveAlert возвращает активное уведомление по ключу (владелец, отель, дата).
func (p *Postgres) ActiveAlert(ctx context.Context, ownerID, hotelID int64, day time.Time) (domain.Alert, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	alert, err := p.scanAlertRow(p.pool.QueryRow(ctx, `
SELECT id, owner_id, hotel_id, day, alert_type, custom_price, competitor_base_price, difference, active, created_at, dismissed_at
FROM alerts
WHERE owner_id = $1 AND hotel_id = $2 AND day = $3 AND active
`, ownerID, hotelID, day))
	metrics.ObserveNetworkRequest("postgres", "alerts_active_get", "alerts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Alert{}, domain.ErrNotFound
	}
	return alert, err
}

// InsertAlert создаёт новое уведомление.
func (p *Postgres) InsertAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO alerts (owner_id, hotel_id, day, alert_type, custom_price, competitor_base_price, difference, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
RETURNING id
`, alert.OwnerID, alert.HotelID, alert.Day, alert.AlertType, alert.CustomPrice,
		alert.CompetitorBasePrice, alert.Difference, alert.CreatedAt).Scan(&alert.ID)
	metrics.ObserveNetworkRequest("postgres", "alerts_insert", "alerts", start, err)
	if err != nil {
		return domain.Alert{}, err
	}
	alert.Active = true
	return alert, nil
}

// UpdateAlert обновляет активное уведомление на месте.
func (p *Postgres) UpdateAlert(ctx context.Context, alert domain.Alert) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE alerts SET
  competitor_base_price = $2,
  difference = $3,
  created_at = $4
WHERE id = $1 AND active
`, alert.ID, alert.CompetitorBasePrice, alert.Difference, alert.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "alerts_update", "alerts", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListAlerts возвращает уведомления владельца, новые первыми.
func (p *Postgres) ListAlerts(ctx context.Context, ownerID int64, activeOnly bool) ([]domain.Alert, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, owner_id, hotel_id, day, alert_type, custom_price, competitor_base_price, difference, active, created_at, dismissed_at
FROM alerts
WHERE owner_id = $1 AND (NOT $2 OR active)
ORDER BY created_at DESC
`, ownerID, activeOnly)
	metrics.ObserveNetworkRequest("postgres", "alerts_list", "alerts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		alert, err := p.scanAlertRow(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// DismissAlert гасит уведомление; повторный вызов ничего не меняет.
func (p *Postgres) DismissAlert(ctx context.Context, alertID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE alerts SET active = false, dismissed_at = now()
WHERE id = $1 AND active
`, alertID)
	metrics.ObserveNetworkRequest("postgres", "alerts_dismiss", "alerts", start, err)
	return err
}

func (p *Postgres) scanAlertRow(row pgx.Row) (domain.Alert, error) {
	var (
		alert       domain.Alert
		dismissedAt sql.NullTime
	)
	err := row.Scan(&alert.ID, &alert.OwnerID, &alert.HotelID, &alert.Day, &alert.AlertType,
		&alert.CustomPrice, &alert.CompetitorBasePrice, &alert.Difference, &alert.Active,
		&alert.CreatedAt, &dismissedAt)
	if err != nil {
		return domain.Alert{}, err
	}
	if dismissedAt.Valid {
		ts := dismissedAt.Time
		alert.DismissedAt = &ts
	}
	return alert, nil
}
