package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"rate-radar/internal/adapters/repo"
	"rate-radar/internal/domain"
	"rate-radar/internal/infra/config"
	"rate-radar/internal/infra/db"
	httpinfra "rate-radar/internal/infra/http"
	applog "rate-radar/internal/infra/log"
	"rate-radar/internal/infra/metrics"
	"rate-radar/internal/infra/queue"
	"rate-radar/internal/infra/secrets"
	"rate-radar/internal/usecase/alerting"
	"rate-radar/internal/usecase/session"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090", nil)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	if cfg.CredKey == "" {
		logger.Fatal().Msg("api: не указан ключ шифрования (CRED_KEY)")
	}
	box, err := secrets.NewBox(cfg.CredKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: некорректный ключ шифрования")
	}

	sessionStore := session.NewStore(repoAdapter, cfg.Portal.SessionTTLDays, logger.With().Str("component", "session").Logger())
	alertService := alerting.NewService(repoAdapter, nil, logger.With().Str("component", "alerting").Logger())

	var jobs domain.SyncQueue
	switch {
	case cfg.RabbitURL != "":
		rabbit, err := queue.NewRabbitSyncQueue(cfg.RabbitURL, cfg.Queues.Sync)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		jobs = rabbit
	case cfg.RedisAddr != "":
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		jobs = queue.NewRedisSyncQueue(redisClient, cfg.Queues.Sync)
	default:
		logger.Fatal().Msg("api: не указан ни RabbitMQ, ни Redis")
	}

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	r := srv.Router

	r.Route("/api/v1/owners/{owner}", func(r chi.Router) {
		r.Put("/credentials", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			defer req.Body.Close()
			var body struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "некорректное тело запроса")
				return
			}
			if body.Username == "" || body.Password == "" {
				writeError(w, http.StatusBadRequest, "логин и пароль обязательны")
				return
			}
			sealed, err := box.Seal(body.Password)
			if err != nil {
				logger.Error().Err(err).Msg("api: шифрование пароля")
				writeError(w, http.StatusInternalServerError, "не удалось сохранить учётные данные")
				return
			}
			cred := domain.PortalCredential{OwnerID: ownerID, Username: body.Username, SecretEnc: sealed}
			if err := repoAdapter.SaveCredential(req.Context(), cred); err != nil {
				logger.Error().Err(err).Msg("api: сохранение учётных данных")
				writeError(w, http.StatusInternalServerError, "не удалось сохранить учётные данные")
				return
			}
			writeJSON(w, map[string]string{"status": "ok"})
		})

		r.Get("/credentials", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			cred, err := repoAdapter.GetCredential(req.Context(), ownerID)
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "учётные данные не найдены")
				return
			}
			if err != nil {
				logger.Error().Err(err).Msg("api: чтение учётных данных")
				writeError(w, http.StatusInternalServerError, "не удалось получить учётные данные")
				return
			}
			// Пароль наружу не отдаётся даже в зашифрованном виде.
			writeJSON(w, map[string]any{
				"owner_id":     cred.OwnerID,
				"username":     cred.Username,
				"sync_status":  cred.SyncStatus,
				"sync_error":   cred.SyncError,
				"last_sync_at": cred.LastSyncAt,
			})
		})

		r.Delete("/credentials", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			if err := repoAdapter.DeleteCredential(req.Context(), ownerID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				logger.Error().Err(err).Msg("api: удаление учётных данных")
				writeError(w, http.StatusInternalServerError, "не удалось удалить учётные данные")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/session/import", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			defer req.Body.Close()
			raw, err := io.ReadAll(req.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "не удалось прочитать тело запроса")
				return
			}
			if !sessionStore.ImportFromPayload(req.Context(), ownerID, raw) {
				writeError(w, http.StatusUnprocessableEntity, "снимок сессии отклонён")
				return
			}
			writeJSON(w, map[string]string{"status": "ok"})
		})

		r.Get("/session/export", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			payload, ok := sessionStore.ExportToPayload(req.Context(), ownerID)
			if !ok {
				writeError(w, http.StatusNotFound, "живая сессия не найдена")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(payload)
		})

		r.Get("/session/status", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			writeJSON(w, map[string]any{
				"days_remaining":     sessionStore.DaysRemaining(req.Context(), ownerID),
				"needs_verification": sessionStore.NeedsVerification(req.Context(), ownerID),
			})
		})

		r.Delete("/session", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			if err := sessionStore.Delete(req.Context(), ownerID); err != nil {
				logger.Error().Err(err).Msg("api: удаление сессии")
				writeError(w, http.StatusInternalServerError, "не удалось удалить сессию")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/sync", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			job := domain.SyncJob{
				ID:           uuid.NewString(),
				OwnerID:      ownerID,
				Cause:        domain.SyncCauseManual,
				ScheduledFor: time.Now().UTC(),
				RequestedAt:  time.Now().UTC(),
			}
			if err := jobs.Enqueue(req.Context(), job); err != nil {
				logger.Error().Err(err).Msg("api: постановка задачи синхронизации")
				writeError(w, http.StatusInternalServerError, "не удалось поставить задачу")
				return
			}
			writeJSON(w, map[string]string{"status": "queued", "job_id": job.ID})
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			runs, err := repoAdapter.ListRuns(req.Context(), ownerID, limit)
			if err != nil {
				logger.Error().Err(err).Msg("api: история запусков")
				writeError(w, http.StatusInternalServerError, "не удалось получить историю запусков")
				return
			}
			writeJSON(w, runs)
		})

		r.Put("/custom-prices", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			defer req.Body.Close()
			var body struct {
				HotelID int64   `json:"hotel_id"`
				Day     string  `json:"day"`
				Amount  float64 `json:"amount"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "некорректное тело запроса")
				return
			}
			day, err := time.Parse("2006-01-02", body.Day)
			if err != nil {
				writeError(w, http.StatusBadRequest, "ожидается дата в формате 2006-01-02")
				return
			}
			if body.Amount <= 0 {
				writeError(w, http.StatusBadRequest, "цена должна быть положительной")
				return
			}
			price := domain.CustomPrice{OwnerID: ownerID, HotelID: body.HotelID, Day: day, Amount: body.Amount}
			if err := repoAdapter.UpsertCustomPrice(req.Context(), price); err != nil {
				logger.Error().Err(err).Msg("api: сохранение собственной цены")
				writeError(w, http.StatusInternalServerError, "не удалось сохранить цену")
				return
			}
			writeJSON(w, map[string]string{"status": "ok"})
		})

		r.Get("/custom-prices", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			prices, err := repoAdapter.ListCustomPrices(req.Context(), ownerID)
			if err != nil {
				logger.Error().Err(err).Msg("api: список собственных цен")
				writeError(w, http.StatusInternalServerError, "не удалось получить цены")
				return
			}
			writeJSON(w, prices)
		})

		r.Get("/alerts", func(w http.ResponseWriter, req *http.Request) {
			ownerID, ok := ownerParam(w, req)
			if !ok {
				return
			}
			activeOnly := req.URL.Query().Get("active") == "true"
			alerts, err := alertService.List(req.Context(), ownerID, activeOnly)
			if err != nil {
				logger.Error().Err(err).Msg("api: список уведомлений")
				writeError(w, http.StatusInternalServerError, "не удалось получить уведомления")
				return
			}
			writeJSON(w, alerts)
		})
	})

	r.Post("/api/v1/alerts/{id}/dismiss", func(w http.ResponseWriter, req *http.Request) {
		alertID, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "некорректный идентификатор уведомления")
			return
		}
		if err := alertService.Dismiss(req.Context(), alertID); err != nil {
			logger.Error().Err(err).Msg("api: гашение уведомления")
			writeError(w, http.StatusInternalServerError, "не удалось погасить уведомление")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/hotels", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		var body struct {
			Name       string `json:"name"`
			PortalKey  string `json:"portal_key"`
			GroupLabel string `json:"group_label"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "некорректное тело запроса")
			return
		}
		if body.Name == "" || body.PortalKey == "" {
			writeError(w, http.StatusBadRequest, "название и ключ портала обязательны")
			return
		}
		hotel, err := repoAdapter.AddHotel(req.Context(), domain.Hotel{
			Name:       body.Name,
			PortalKey:  body.PortalKey,
			GroupLabel: body.GroupLabel,
		})
		if err != nil {
			logger.Error().Err(err).Msg("api: добавление отеля")
			writeError(w, http.StatusInternalServerError, "не удалось добавить отель")
			return
		}
		writeJSON(w, hotel)
	})

	r.Get("/api/v1/hotels", func(w http.ResponseWriter, req *http.Request) {
		hotels, err := repoAdapter.ListHotels(req.Context())
		if err != nil {
			logger.Error().Err(err).Msg("api: список отелей")
			writeError(w, http.StatusInternalServerError, "не удалось получить отели")
			return
		}
		writeJSON(w, hotels)
	})

	r.Put("/api/v1/hotels/{id}/name", func(w http.ResponseWriter, req *http.Request) {
		hotelID, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "некорректный идентификатор отеля")
			return
		}
		defer req.Body.Close()
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Name == "" {
			writeError(w, http.StatusBadRequest, "название обязательно")
			return
		}
		if err := repoAdapter.RenameHotel(req.Context(), hotelID, body.Name); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "отель не найден")
				return
			}
			logger.Error().Err(err).Msg("api: переименование отеля")
			writeError(w, http.StatusInternalServerError, "не удалось переименовать отель")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/api/v1/observations", func(w http.ResponseWriter, req *http.Request) {
		observations, err := repoAdapter.LatestObservations(req.Context())
		if err != nil {
			logger.Error().Err(err).Msg("api: последние замеры")
			writeError(w, http.StatusInternalServerError, "не удалось получить замеры")
			return
		}
		writeJSON(w, observations)
	})

	r.Get("/api/v1/hotels/{id}/observations", func(w http.ResponseWriter, req *http.Request) {
		hotelID, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "некорректный идентификатор отеля")
			return
		}
		from, err := time.Parse("2006-01-02", req.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "параметр from: ожидается дата 2006-01-02")
			return
		}
		to, err := time.Parse("2006-01-02", req.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "параметр to: ожидается дата 2006-01-02")
			return
		}
		observations, err := repoAdapter.ObservationsRange(req.Context(), hotelID, from, to)
		if err != nil {
			logger.Error().Err(err).Msg("api: замеры за период")
			writeError(w, http.StatusInternalServerError, "не удалось получить замеры")
			return
		}
		writeJSON(w, observations)
	})

	r.Get("/api/v1/telemetry", func(w http.ResponseWriter, req *http.Request) {
		if cfg.WorkerTelemetryURL == "" {
			writeError(w, http.StatusServiceUnavailable, "телеметрия недоступна")
			return
		}
		start := time.Now()
		resp, err := http.Get(cfg.WorkerTelemetryURL)
		metrics.ObserveNetworkRequest("http", "telemetry_proxy", "syncworker", start, err)
		if err != nil {
			writeError(w, http.StatusBadGateway, "телеметрия недоступна")
			return
		}
		defer resp.Body.Close()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	})

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func ownerParam(w http.ResponseWriter, req *http.Request) (int64, bool) {
	ownerID, err := strconv.ParseInt(chi.URLParam(req, "owner"), 10, 64)
	if err != nil || ownerID <= 0 {
		writeError(w, http.StatusBadRequest, "некорректный идентификатор владельца")
		return 0, false
	}
	return ownerID, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
