package websocket

import (
	"time"

	"updown/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы сообщений дашборда
const (
	// MessageTypeSeriesUpdate - изменение торговой серии: открытие,
	// покупка шага, хедж, валидация, завершение
	MessageTypeSeriesUpdate MessageType = "seriesUpdate"

	// MessageTypeStatsUpdate - изменение статистики бота после
	// любой операции с балансом
	MessageTypeStatsUpdate MessageType = "statsUpdate"

	// MessageTypeSignal - детектор опубликовал новый сигнал
	MessageTypeSignal MessageType = "signal"
)

// BaseMessage - общая часть всех сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// SeriesUpdateMessage - снимок серии после изменения
type SeriesUpdateMessage struct {
	BaseMessage
	BotID string            `json:"bot_id"`
	Asset string            `json:"asset"`
	Data  *SeriesUpdateData `json:"data"`
}

// SeriesUpdateData - данные серии для фронтенда
type SeriesUpdateData struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	SignalColor     string            `json:"signal_color"`
	BetColor        string            `json:"bet_color"`
	CurrentStep     int               `json:"current_step"`
	MarketSlug      string            `json:"market_slug"`
	MarketState     string            `json:"market_state"`
	NextStepBought  bool              `json:"next_step_bought"`
	TotalInvested   float64           `json:"total_invested"`
	TotalCommission float64           `json:"total_commission"`
	TotalPnL        float64           `json:"total_pnl"`
	HedgeLosses     float64           `json:"hedge_losses"`
	Positions       []models.Position `json:"positions,omitempty"`
	LastEvent       string            `json:"last_event,omitempty"`
}

// StatsUpdateMessage - актуальная статистика бота
type StatsUpdateMessage struct {
	BaseMessage
	BotID string               `json:"bot_id"`
	Data  *models.TradingStats `json:"data"`
}

// SignalMessage - обнаруженный сигнал
type SignalMessage struct {
	BaseMessage
	Data *models.Signal `json:"data"`
}

// NewSeriesUpdateMessage собирает снимок серии
func NewSeriesUpdateMessage(series *models.TradeSeries) *SeriesUpdateMessage {
	data := &SeriesUpdateData{
		ID:              series.ID,
		Status:          string(series.Status),
		SignalColor:     string(series.SignalColor),
		BetColor:        string(series.BetColor),
		CurrentStep:     series.CurrentStep,
		MarketSlug:      series.CurrentMarketSlug,
		MarketState:     string(series.MarketState),
		NextStepBought:  series.NextStepBought,
		TotalInvested:   series.TotalInvested,
		TotalCommission: series.TotalCommission,
		TotalPnL:        series.TotalPnL,
		HedgeLosses:     series.HedgeLosses,
		Positions:       series.Positions,
	}
	if n := len(series.Events); n > 0 {
		data.LastEvent = series.Events[n-1].Message
	}
	return &SeriesUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSeriesUpdate, Timestamp: time.Now().UTC()},
		BotID:       series.BotID,
		Asset:       series.Asset,
		Data:        data,
	}
}

// NewStatsUpdateMessage собирает сообщение статистики
func NewStatsUpdateMessage(stats *models.TradingStats) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeStatsUpdate, Timestamp: time.Now().UTC()},
		BotID:       stats.BotID,
		Data:        stats,
	}
}

// NewSignalMessage собирает сообщение о сигнале
func NewSignalMessage(sig models.Signal) *SignalMessage {
	return &SignalMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSignal, Timestamp: time.Now().UTC()},
		Data:        &sig,
	}
}
