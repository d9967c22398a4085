// Package notify доставляет события торговых серий в Telegram.
//
// Уведомления fire-and-forget: движок не ждёт доставки и не видит
// ошибок, всё проглатывает и логирует сам нотификатор. Подписка
// управляется командами /start, /stop и /status в чате с ботом.
package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"updown/internal/bot"
	"updown/internal/models"
)

// SubscriberStore - durable-хранилище подписчиков
type SubscriberStore interface {
	Upsert(sub *models.Subscriber) error
	SetSubscribed(chatID int64, subscribed bool) error
	ListSubscribed() ([]*models.Subscriber, error)
}

// sender покрывает методы tgbotapi.BotAPI, нужные нотификатору
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram реализует контракт Notifier торгового движка
type Telegram struct {
	api  sender
	subs SubscriberStore
	log  *zap.Logger

	// очередь на отправку, чтобы NotifySeries не блокировал тик движка
	queue chan outgoing
}

type outgoing struct {
	chatID int64
	text   string
}

// queueSize ограничивает очередь уведомлений. Переполнение роняет
// сообщение, а не тик движка.
const queueSize = 256

func NewTelegram(token string, subs SubscriberStore, log *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram api: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{
		api:   api,
		subs:  subs,
		log:   log,
		queue: make(chan outgoing, queueSize),
	}, nil
}

// Run обслуживает очередь отправки и команды подписчиков
func (t *Telegram) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := t.api.GetUpdatesChan(cfg)
	defer t.api.StopReceivingUpdates()

	t.log.Info("telegram-нотификатор запущен")
	for {
		select {
		case <-ctx.Done():
			t.log.Info("telegram-нотификатор остановлен")
			return
		case out := <-t.queue:
			t.deliver(out)
		case upd, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(upd)
		}
	}
}

// NotifySeries рендерит таймлайн серии и ставит его в очередь всем
// подписчикам. Никогда не блокирует вызывающего.
func (t *Telegram) NotifySeries(series *models.TradeSeries) {
	subs, err := t.subs.ListSubscribed()
	if err != nil {
		t.log.Error("список подписчиков недоступен", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	text := RenderSeries(series)
	for _, sub := range subs {
		select {
		case t.queue <- outgoing{chatID: sub.ChatID, text: text}:
		default:
			t.log.Warn("очередь уведомлений переполнена, сообщение пропущено",
				zap.Int64("chat_id", sub.ChatID),
				zap.String("series_id", series.ID))
		}
	}
}

// Broadcast ставит произвольный текст в очередь всем подписчикам
func (t *Telegram) Broadcast(text string) {
	subs, err := t.subs.ListSubscribed()
	if err != nil {
		t.log.Error("список подписчиков недоступен", zap.Error(err))
		return
	}
	for _, sub := range subs {
		select {
		case t.queue <- outgoing{chatID: sub.ChatID, text: text}:
		default:
		}
	}
}

func (t *Telegram) deliver(out outgoing) {
	msg := tgbotapi.NewMessage(out.chatID, out.text)
	if _, err := t.api.Send(msg); err != nil {
		t.log.Warn("уведомление не доставлено",
			zap.Int64("chat_id", out.chatID), zap.Error(err))
	}
}

func (t *Telegram) handleUpdate(upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		now := time.Now().UTC()
		err := t.subs.Upsert(&models.Subscriber{
			ChatID:     chatID,
			Username:   msg.From.UserName,
			Subscribed: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			t.log.Error("подписка не сохранена", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
		t.reply(chatID, "Подписка оформлена. Сюда будут приходить события торговых серий.\n/stop - отписаться")
	case "stop":
		if err := t.subs.SetSubscribed(chatID, false); err != nil {
			t.log.Error("отписка не сохранена", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
		t.reply(chatID, "Подписка отключена. /start - подписаться снова")
	case "status":
		t.reply(chatID, "Бот работает. /start - подписка, /stop - отписка")
	}
}

func (t *Telegram) reply(chatID int64, text string) {
	select {
	case t.queue <- outgoing{chatID: chatID, text: text}:
	default:
	}
}

// контракт движка выполняется указателем
var _ bot.Notifier = (*Telegram)(nil)
