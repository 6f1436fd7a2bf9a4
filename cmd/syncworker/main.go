package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rate-radar/internal/adapters/browser"
	"rate-radar/internal/adapters/notify"
	"rate-radar/internal/adapters/repo"
	"rate-radar/internal/domain"
	"rate-radar/internal/infra/config"
	"rate-radar/internal/infra/db"
	applog "rate-radar/internal/infra/log"
	"rate-radar/internal/infra/metrics"
	"rate-radar/internal/infra/queue"
	"rate-radar/internal/infra/secrets"
	"rate-radar/internal/usecase/alerting"
	"rate-radar/internal/usecase/session"
	syncusecase "rate-radar/internal/usecase/sync"
	"rate-radar/internal/usecase/telemetry"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := telemetry.NewTracker()
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tracker.FormattedStats())
	})
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090", mux)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("syncworker: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	if cfg.CredKey == "" {
		logger.Fatal().Msg("syncworker: не указан ключ шифрования (CRED_KEY)")
	}
	box, err := secrets.NewBox(cfg.CredKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("syncworker: некорректный ключ шифрования")
	}

	var notifier alerting.Notifier
	if cfg.Telegram.Token != "" && cfg.Telegram.AlertChatID != 0 {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("syncworker: не удалось создать бота")
		}
		notifier = notify.NewTelegram(botAPI, cfg.Telegram.AlertChatID, logger.With().Str("component", "notify").Logger())
	}
	alertService := alerting.NewService(repoAdapter, notifier, logger.With().Str("component", "alerting").Logger())

	sessionStore := session.NewStore(repoAdapter, cfg.Portal.SessionTTLDays, logger.With().Str("component", "session").Logger())

	if cfg.Portal.BaseURL == "" {
		logger.Fatal().Msg("syncworker: не указан адрес портала (PORTAL_BASE_URL)")
	}
	portalCfg := browser.Config{
		BaseURL:     cfg.Portal.BaseURL,
		SearchPath:  cfg.Portal.SearchPath,
		Destination: cfg.Portal.Destination,
		Headless:    cfg.Portal.Headless,
		NavTimeout:  cfg.Portal.NavTimeout,
		StepTimeout: cfg.Portal.StepTimeout,
	}
	scraperFactory := func(ownerID int64) domain.Scraper {
		return browser.NewPortal(portalCfg, sessionStore, ownerID, logger.With().Str("component", "browser").Int64("owner", ownerID).Logger())
	}

	syncService := syncusecase.NewService(
		repoAdapter,
		repoAdapter,
		repoAdapter,
		repoAdapter,
		repoAdapter,
		alertService,
		box,
		scraperFactory,
		tracker,
		cfg.Sync.HorizonDays,
		cfg.Portal.Currency,
		logger.With().Str("component", "sync").Logger(),
	)

	var jobs domain.SyncQueue
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitSyncQueue(cfg.RabbitURL, cfg.Queues.Sync)
		if err != nil {
			logger.Fatal().Err(err).Msg("syncworker: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		jobs = rabbit
	} else {
		if cfg.RedisAddr == "" {
			logger.Fatal().Msg("syncworker: не указан ни RabbitMQ, ни Redis")
		}
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		jobs = queue.NewRedisSyncQueue(redisClient, cfg.Queues.Sync)
	}

	logger.Info().Msg("syncworker: запуск обработки очереди")
	runLoop(ctx, logger, jobs, syncService)
	logger.Info().Msg("syncworker: остановлен")
}

func runLoop(ctx context.Context, logger zerolog.Logger, jobs domain.SyncQueue, service *syncusecase.Service) {
	for {
		job, err := jobs.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("syncworker: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := logger.With().
			Str("job_id", job.ID).
			Int64("owner", job.OwnerID).
			Str("cause", string(job.Cause)).
			Logger()
		jobLog.Info().Msg("syncworker: задача получена")

		if err := service.RunForOwner(ctx, job.OwnerID); err != nil {
			jobLog.Error().Err(err).Msg("syncworker: запуск завершился ошибкой")
			continue
		}
		jobLog.Info().Msg("syncworker: запуск завершён")
	}
}
