package bot

import (
	"updown/internal/models"
)

// ports.go - контракты, которые торговый движок требует от окружения
//
// Движок не знает ни о PostgreSQL, ни о Telegram, ни о WebSocket:
// хранилища и каналы уведомлений подключаются через эти интерфейсы,
// в тестах подменяются стабами.

// SeriesStore - durable-хранилище торговых серий
type SeriesStore interface {
	// Save сохраняет серию (insert или update по id)
	Save(series *models.TradeSeries) error
	// FindOpen возвращает незавершённые серии бота (active и cooldown)
	FindOpen(botID string) ([]*models.TradeSeries, error)
	// FindOpenByAsset возвращает незавершённую серию по активу
	// или ошибку "не найдено"
	FindOpenByAsset(botID, asset string) (*models.TradeSeries, error)
}

// StatsStore - durable-хранилище статистики бота
type StatsStore interface {
	// GetOrCreate возвращает статистику, создавая запись с начальным
	// депозитом при первом обращении
	GetOrCreate(botID string, deposit float64) (*models.TradingStats, error)
	// Save записывает изменённую статистику
	Save(stats *models.TradingStats) error
}

// Notifier доставляет подписчикам обновления серии.
// Вызовы fire-and-forget: ошибки доставки логируются получателем,
// движок их не видит и не ретраит.
type Notifier interface {
	NotifySeries(series *models.TradeSeries)
}

// Publisher транслирует обновления в реальном времени (WebSocket)
type Publisher interface {
	PublishSeries(series *models.TradeSeries)
	PublishStats(stats *models.TradingStats)
}

// noopNotifier и noopPublisher подставляются вместо nil-зависимостей

type noopNotifier struct{}

func (noopNotifier) NotifySeries(*models.TradeSeries) {}

type noopPublisher struct{}

func (noopPublisher) PublishSeries(*models.TradeSeries) {}
func (noopPublisher) PublishStats(*models.TradingStats) {}
