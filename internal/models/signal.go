package models

import "time"

// signal.go - сигналы детектора паттернов
//
// Назначение:
// Сигнал - событие "N подряд свечей одного цвета" по активу.
// Детектор публикует сигналы в роутер, роутер раздаёт их всем
// движкам; каждый движок сам решает, реагировать ли.

// SignalType представляет класс обнаруженного паттерна
type SignalType string

const (
	SignalTwoCandles   SignalType = "2candles" // две подряд свечи одного цвета
	SignalThreeCandles SignalType = "3candles" // три подряд свечи одного цвета
)

// Valid проверяет корректность типа сигнала
func (t SignalType) Valid() bool {
	return t == SignalTwoCandles || t == SignalThreeCandles
}

// Signal представляет обнаруженный паттерн
type Signal struct {
	Asset          string     `json:"asset"`
	Color          Color      `json:"color"`            // цвет серии свечей
	MarketSlug     string     `json:"market_slug"`      // интервал, где паттерн обнаружен
	NextMarketSlug string     `json:"next_market_slug"` // интервал для ставки первого шага
	Type           SignalType `json:"type"`
	DetectedAt     time.Time  `json:"detected_at"`
}

// SignalLogEntry представляет запись журнала сигналов.
// Используется для дедупликации: один сигнал на (market_slug, type).
type SignalLogEntry struct {
	ID         int        `json:"id" db:"id"`
	Asset      string     `json:"asset" db:"asset"`
	Color      Color      `json:"color" db:"color"`
	MarketSlug string     `json:"market_slug" db:"market_slug"`
	Type       SignalType `json:"type" db:"type"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
