package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"rate-radar/internal/domain"
	"rate-radar/internal/infra/metrics"
)

// Telegram отправляет уведомления о проигрыше по цене в заданный чат.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegram создаёт нотификатор.
func NewTelegram(bot *tgbotapi.BotAPI, chatID int64, log zerolog.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, log: log}
}

// NotifyAlert отправляет сообщение о новом уведомлении.
func (t *Telegram) NotifyAlert(_ context.Context, alert domain.Alert) error {
	text := fmt.Sprintf(
		"⚠️ Конкурент дешевле\nОтель #%d, дата %s\nВаша цена: %.0f ₽\nБазовая цена конкурента: %.0f ₽\nРазница: %.0f ₽",
		alert.HotelID,
		alert.Day.Format("02.01.2006"),
		alert.CustomPrice,
		alert.CompetitorBasePrice,
		alert.Difference,
	)

	msg := tgbotapi.NewMessage(t.chatID, text)
	start := time.Now()
	_, err := t.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_alert", "bot_api", start, err)
	if err != nil {
		return fmt.Errorf("отправка в telegram: %w", err)
	}
	t.log.Debug().Int64("owner", alert.OwnerID).Int64("hotel", alert.HotelID).Msg("notify: уведомление отправлено")
	return nil
}
