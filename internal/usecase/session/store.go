package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rate-radar/internal/domain"
)

// Store отвечает за жизненный цикл сессии портала: одна живая сессия на
// владельца, перезапись вместо слияния, единый срок годности от CreatedAt.
type Store struct {
	repo domain.SessionRepo
	ttl  time.Duration
	log  zerolog.Logger

	// Now подменяется в тестах.
	Now func() time.Time
}

// NewStore создаёт хранилище сессий со сроком годности в днях.
func NewStore(repo domain.SessionRepo, ttlDays int, log zerolog.Logger) *Store {
	return &Store{
		repo: repo,
		ttl:  time.Duration(ttlDays) * 24 * time.Hour,
		log:  log,
		Now:  time.Now,
	}
}

// payload — внешний формат сессии для импорта и экспорта.
type payload struct {
	Cookies   json.RawMessage `json:"cookies"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// Save перезаписывает сессию владельца свежим снимком состояния браузера.
func (s *Store) Save(ctx context.Context, ownerID int64, state []byte) error {
	now := s.Now().UTC()
	return s.repo.SaveSession(ctx, domain.PortalSession{
		OwnerID:   ownerID,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
}

// Load возвращает живую сессию владельца либо nil. Любая ошибка чтения или
// разбора, как и истёкший срок, приводит к удалению сессии, а не к ошибке.
func (s *Store) Load(ctx context.Context, ownerID int64) *domain.PortalSession {
	sess, err := s.repo.GetSession(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Int64("owner", ownerID).Msg("session: ошибка чтения, сессия сброшена")
			_ = s.repo.DeleteSession(ctx, ownerID)
		}
		return nil
	}
	if !validState(sess.State) {
		s.log.Warn().Int64("owner", ownerID).Msg("session: повреждённое состояние, сессия сброшена")
		_ = s.repo.DeleteSession(ctx, ownerID)
		return nil
	}
	if !s.Now().UTC().Before(sess.ExpiresAt) {
		s.log.Info().Int64("owner", ownerID).Msg("session: срок истёк, сессия удалена")
		_ = s.repo.DeleteSession(ctx, ownerID)
		return nil
	}
	return &sess
}

// Delete удаляет сессию владельца. Отсутствующая сессия ошибкой не считается.
func (s *Store) Delete(ctx context.Context, ownerID int64) error {
	err := s.repo.DeleteSession(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// DaysRemaining возвращает число полных дней до истечения сессии либо nil.
func (s *Store) DaysRemaining(ctx context.Context, ownerID int64) *int {
	sess := s.Load(ctx, ownerID)
	if sess == nil {
		return nil
	}
	days := int(sess.ExpiresAt.Sub(s.Now().UTC()).Hours() / 24)
	return &days
}

// NeedsVerification сообщает, что сессию пора перепроверить интерактивно:
// либо живой сессии нет, либо её возраст достиг срока годности.
func (s *Store) NeedsVerification(ctx context.Context, ownerID int64) bool {
	sess := s.Load(ctx, ownerID)
	if sess == nil {
		return true
	}
	return s.Now().UTC().Sub(sess.CreatedAt) >= s.ttl
}

// ImportFromPayload проверяет внешний снимок сессии и сохраняет его.
// Возвращает false без записи при любом нарушении структуры или сроков.
func (s *Store) ImportFromPayload(ctx context.Context, ownerID int64, raw []byte) bool {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	if !validState(p.Cookies) {
		return false
	}
	now := s.Now().UTC()
	if !p.ExpiresAt.IsZero() && !p.ExpiresAt.After(now) {
		return false
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	expiresAt := createdAt.Add(s.ttl)
	if !expiresAt.After(now) {
		return false
	}
	err := s.repo.SaveSession(ctx, domain.PortalSession{
		OwnerID:   ownerID,
		State:     p.Cookies,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.log.Error().Err(err).Int64("owner", ownerID).Msg("session: не удалось сохранить импорт")
		return false
	}
	return true
}

// ExportToPayload сериализует живую сессию владельца во внешний формат.
func (s *Store) ExportToPayload(ctx context.Context, ownerID int64) ([]byte, bool) {
	sess := s.Load(ctx, ownerID)
	if sess == nil {
		return nil, false
	}
	raw, err := json.Marshal(payload{
		Cookies:   sess.State,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return nil, false
	}
	return raw, true
}

// validState требует непустой JSON-массив cookies.
func validState(state []byte) bool {
	var cookies []json.RawMessage
	if err := json.Unmarshal(state, &cookies); err != nil {
		return false
	}
	return len(cookies) > 0
}
