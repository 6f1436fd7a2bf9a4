package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rate-radar/internal/domain"
)

type stubSessionRepo struct {
	sessions map[int64]domain.PortalSession
	saveErr  error
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[int64]domain.PortalSession)}
}

func (s *stubSessionRepo) SaveSession(_ context.Context, sess domain.PortalSession) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[sess.OwnerID] = sess
	return nil
}

func (s *stubSessionRepo) GetSession(_ context.Context, ownerID int64) (domain.PortalSession, error) {
	sess, ok := s.sessions[ownerID]
	if !ok {
		return domain.PortalSession{}, domain.ErrNotFound
	}
	return sess, nil
}

func (s *stubSessionRepo) DeleteSession(_ context.Context, ownerID int64) error {
	delete(s.sessions, ownerID)
	return nil
}

func validCookies() []byte {
	return []byte(`[{"name":"sid","value":"abc","domain":".portal.example"}]`)
}

func newTestStore(repo *stubSessionRepo, now time.Time) *Store {
	store := NewStore(repo, 15, zerolog.Nop())
	store.Now = func() time.Time { return now }
	return store
}

func TestSaveAndLoad(t *testing.T) {
	repo := newStubSessionRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(repo, now)

	if err := store.Save(context.Background(), 1, validCookies()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	sess := store.Load(context.Background(), 1)
	if sess == nil {
		t.Fatalf("ожидали живую сессию")
	}
	if !sess.ExpiresAt.Equal(now.Add(15 * 24 * time.Hour)) {
		t.Fatalf("ожидали срок через 15 дней, получили %v", sess.ExpiresAt)
	}
	days := store.DaysRemaining(context.Background(), 1)
	if days == nil || *days != 15 {
		t.Fatalf("ожидали 15 дней, получили %v", days)
	}
}

func TestLoadExpiredDeletes(t *testing.T) {
	repo := newStubSessionRepo()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(repo, created)
	if err := store.Save(context.Background(), 1, validCookies()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	store.Now = func() time.Time { return created.Add(15*24*time.Hour + time.Second) }
	if sess := store.Load(context.Background(), 1); sess != nil {
		t.Fatalf("ожидали nil после истечения срока")
	}
	if _, ok := repo.sessions[1]; ok {
		t.Fatalf("ожидали удаление истёкшей сессии из хранилища")
	}
	// Повторное удаление идемпотентно.
	if err := store.Delete(context.Background(), 1); err != nil {
		t.Fatalf("не ожидали ошибку повторного удаления: %v", err)
	}
}

func TestLoadMalformedStateDeletes(t *testing.T) {
	repo := newStubSessionRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(repo, now)
	repo.sessions[7] = domain.PortalSession{
		OwnerID:   7,
		State:     []byte(`{"broken":`),
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	if sess := store.Load(context.Background(), 7); sess != nil {
		t.Fatalf("ожидали nil для повреждённой сессии")
	}
	if _, ok := repo.sessions[7]; ok {
		t.Fatalf("ожидали удаление повреждённой сессии")
	}
}

func TestNeedsVerification(t *testing.T) {
	repo := newStubSessionRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(repo, now)

	if !store.NeedsVerification(context.Background(), 1) {
		t.Fatalf("ожидали true для отсутствующего владельца")
	}

	if err := store.Save(context.Background(), 1, validCookies()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if store.NeedsVerification(context.Background(), 1) {
		t.Fatalf("ожидали false для свежей сессии")
	}
}

func TestImportFromPayloadRejections(t *testing.T) {
	repo := newStubSessionRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(repo, now)

	prior := domain.PortalSession{
		OwnerID:   1,
		State:     validCookies(),
		CreatedAt: now.Add(-24 * time.Hour),
		ExpiresAt: now.Add(14 * 24 * time.Hour),
	}
	repo.sessions[1] = prior

	// Нет коллекции cookies.
	if store.ImportFromPayload(context.Background(), 1, []byte(`{"cookies":[]}`)) {
		t.Fatalf("ожидали отказ для пустых cookies")
	}
	// Срок в прошлом.
	expired, _ := json.Marshal(map[string]any{
		"cookies":    json.RawMessage(validCookies()),
		"expires_at": now.Add(-time.Hour),
	})
	if store.ImportFromPayload(context.Background(), 1, expired) {
		t.Fatalf("ожидали отказ для истёкшего срока")
	}
	// Прежняя сессия не тронута.
	got := repo.sessions[1]
	if !got.CreatedAt.Equal(prior.CreatedAt) || !got.ExpiresAt.Equal(prior.ExpiresAt) {
		t.Fatalf("отказ импорта не должен менять прежнюю сессию")
	}
}

func TestImportExportRoundtrip(t *testing.T) {
	repo := newStubSessionRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(repo, now)

	raw, _ := json.Marshal(map[string]any{
		"cookies":    json.RawMessage(validCookies()),
		"expires_at": now.Add(10 * 24 * time.Hour),
	})
	if !store.ImportFromPayload(context.Background(), 3, raw) {
		t.Fatalf("ожидали успешный импорт")
	}
	exported, ok := store.ExportToPayload(context.Background(), 3)
	if !ok {
		t.Fatalf("ожидали успешный экспорт")
	}
	var p payload
	if err := json.Unmarshal(exported, &p); err != nil {
		t.Fatalf("не ожидали ошибку разбора: %v", err)
	}
	if !validState(p.Cookies) {
		t.Fatalf("ожидали cookies в экспортированном снимке")
	}
}
