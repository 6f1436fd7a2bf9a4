package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ScrapeCells = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_cells_total",
		Help: "Количество обработанных ячеек сетки по статусам",
	}, []string{"status"})

	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Количество запусков синхронизации по статусам",
	}, []string{"status"})

	SyncRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_run_seconds",
		Help:    "Длительность запуска синхронизации",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
	})

	AlertsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_created_total",
		Help: "Количество созданных или обновлённых уведомлений о цене",
	})

	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_auth_attempts_total",
		Help: "Попытки авторизации на портале по исходу",
	}, []string{"outcome"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ScrapeCells,
		SyncRunsTotal,
		SyncRunSeconds,
		AlertsCreated,
		AuthAttempts,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics. Дополнительные
// обработчики можно навесить на переданный mux до вызова.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string, mux *http.ServeMux) {
	if mux == nil {
		mux = http.NewServeMux()
	}
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveSyncRun записывает исход и длительность одного запуска синхронизации.
func ObserveSyncRun(status string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(status).Inc()
	SyncRunSeconds.Observe(duration.Seconds())
}

// IncScrapeCell увеличивает счётчик обработанных ячеек.
func IncScrapeCell(success bool) {
	if success {
		ScrapeCells.WithLabelValues("success").Inc()
		return
	}
	ScrapeCells.WithLabelValues("error").Inc()
}
