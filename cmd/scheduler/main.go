package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rate-radar/internal/adapters/repo"
	"rate-radar/internal/domain"
	"rate-radar/internal/infra/cache"
	"rate-radar/internal/infra/config"
	"rate-radar/internal/infra/db"
	applog "rate-radar/internal/infra/log"
	"rate-radar/internal/infra/metrics"
	"rate-radar/internal/infra/queue"
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
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("scheduler: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	locks := cache.NewRedis(redisClient)

	var jobs domain.SyncQueue
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitSyncQueue(cfg.RabbitURL, cfg.Queues.Sync)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		jobs = rabbit
	} else {
		jobs = queue.NewRedisSyncQueue(redisClient, cfg.Queues.Sync)
	}

	logger.Info().Dur("interval", cfg.Sync.Interval).Msg("scheduler: старт")

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case tick := <-ticker.C:
			enqueueTick(ctx, logger, repoAdapter, locks, jobs, cfg.Sync.Interval, tick.UTC())
		}
	}
}

func enqueueTick(ctx context.Context, logger zerolog.Logger, credentials domain.CredentialRepo, locks domain.Cache, jobs domain.SyncQueue, interval time.Duration, tick time.Time) {
	owners, err := credentials.ListCredentialOwners(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: ошибка выборки владельцев")
		return
	}

	for _, ownerID := range owners {
		// Блокировка на длину интервала: пока владелец уже поставлен в
		// очередь, повторная задача не создаётся.
		lockKey := fmt.Sprintf("sync:lock:%d", ownerID)
		executed, err := locks.Once(lockKey, interval, func() error {
			job := domain.SyncJob{
				ID:           uuid.NewString(),
				OwnerID:      ownerID,
				Cause:        domain.SyncCauseScheduled,
				ScheduledFor: tick,
				RequestedAt:  time.Now().UTC(),
			}
			return jobs.Enqueue(ctx, job)
		})
		if err != nil {
			logger.Error().Err(err).Int64("owner", ownerID).Msg("scheduler: не удалось поставить задачу")
			continue
		}
		if !executed {
			logger.Warn().Int64("owner", ownerID).Msg("scheduler: владелец уже в очереди, пропускаем")
			continue
		}
		logger.Info().Int64("owner", ownerID).Msg("scheduler: задача поставлена")
	}
}
