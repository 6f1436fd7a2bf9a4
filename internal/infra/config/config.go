package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Sync string `envconfig:"SYNC_QUEUE_KEY" default:"sync_jobs"`
	} `envconfig:""`

	Sync struct {
		Interval    time.Duration `envconfig:"SYNC_INTERVAL" default:"10m"`
		HorizonDays int           `envconfig:"SYNC_HORIZON_DAYS" default:"20"`
	} `envconfig:""`

	Portal struct {
		BaseURL        string        `envconfig:"PORTAL_BASE_URL"`
		SearchPath     string        `envconfig:"PORTAL_SEARCH_PATH" default:"/search"`
		Destination    string        `envconfig:"PORTAL_DESTINATION"`
		Currency       string        `envconfig:"PORTAL_CURRENCY" default:"RUB"`
		Headless       bool          `envconfig:"PORTAL_HEADLESS" default:"true"`
		NavTimeout     time.Duration `envconfig:"PORTAL_NAV_TIMEOUT" default:"30s"`
		StepTimeout    time.Duration `envconfig:"PORTAL_STEP_TIMEOUT" default:"15s"`
		SessionTTLDays int           `envconfig:"PORTAL_SESSION_TTL_DAYS" default:"15"`
	} `envconfig:""`

	// CredKey — hex-ключ AES-256 для шифрования паролей портала.
	CredKey string `envconfig:"CRED_KEY"`

	// WorkerTelemetryURL — адрес эндпоинта /telemetry воркера, который API
	// проксирует наружу.
	WorkerTelemetryURL string `envconfig:"WORKER_TELEMETRY_URL"`

	Telegram struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		AlertChatID int64  `envconfig:"TG_ALERT_CHAT_ID"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
