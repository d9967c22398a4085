package models

import (
	"database/sql/driver"
	"strconv"
	"time"
)

// stats.go - агрегированная статистика бота
//
// Назначение:
// Одна запись на бота: текущий баланс, счётчики исходов, серии
// выигрышей/проигрышей и распределение выигрышей по шагам.
// Все списания проверяются по балансу до изменения записи.

// StepWins хранит количество выигрышей по номеру шага (JSONB)
type StepWins map[int]int

// Value реализует driver.Valuer.
// Ключи сериализуются строками, как того требует JSON.
func (w StepWins) Value() (driver.Value, error) {
	m := make(map[string]int, len(w))
	for step, n := range w {
		m[strconv.Itoa(step)] = n
	}
	return json.MarshalToString(m)
}

// Scan реализует sql.Scanner
func (w *StepWins) Scan(src interface{}) error {
	var m map[string]int
	if err := scanJSON(src, &m); err != nil {
		return err
	}
	out := make(StepWins, len(m))
	for k, n := range m {
		step, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[step] = n
	}
	*w = out
	return nil
}

// TradingStats представляет статистику одного бота.
//
// Инвариант: CurrentBalance никогда не уходит в минус, каждое
// списание проверяется до записи.
type TradingStats struct {
	BotID           string   `json:"bot_id" db:"bot_id"`
	InitialDeposit  float64  `json:"initial_deposit" db:"initial_deposit"`
	CurrentBalance  float64  `json:"current_balance" db:"current_balance"`
	TotalTrades     int      `json:"total_trades" db:"total_trades"`
	WonTrades       int      `json:"won_trades" db:"won_trades"`
	LostTrades      int      `json:"lost_trades" db:"lost_trades"`
	CancelledTrades int      `json:"cancelled_trades" db:"cancelled_trades"`
	TotalPnL        float64  `json:"total_pnl" db:"total_pnl"`
	TotalCommission float64  `json:"total_commission" db:"total_commission"`
	MaxWinStreak    int      `json:"max_win_streak" db:"max_win_streak"`
	MaxLossStreak   int      `json:"max_loss_streak" db:"max_loss_streak"`
	CurrentStreak   int      `json:"current_streak" db:"current_streak"` // >0 серия побед, <0 серия поражений
	WinsByStep      StepWins `json:"wins_by_step" db:"wins_by_step"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewTradingStats создает свежую запись статистики с начальным депозитом
func NewTradingStats(botID string, deposit float64) *TradingStats {
	now := time.Now().UTC()
	return &TradingStats{
		BotID:          botID,
		InitialDeposit: deposit,
		CurrentBalance: deposit,
		WinsByStep:     make(StepWins),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RegisterWin фиксирует выигранную серию на шаге step
func (s *TradingStats) RegisterWin(step int, pnl, commission float64) {
	s.TotalTrades++
	s.WonTrades++
	s.TotalPnL += pnl
	s.TotalCommission += commission
	if s.WinsByStep == nil {
		s.WinsByStep = make(StepWins)
	}
	s.WinsByStep[step]++
	if s.CurrentStreak < 0 {
		s.CurrentStreak = 0
	}
	s.CurrentStreak++
	if s.CurrentStreak > s.MaxWinStreak {
		s.MaxWinStreak = s.CurrentStreak
	}
}

// RegisterLoss фиксирует полностью проигранную серию
func (s *TradingStats) RegisterLoss(pnl, commission float64) {
	s.TotalTrades++
	s.LostTrades++
	s.TotalPnL += pnl
	s.TotalCommission += commission
	if s.CurrentStreak > 0 {
		s.CurrentStreak = 0
	}
	s.CurrentStreak--
	if -s.CurrentStreak > s.MaxLossStreak {
		s.MaxLossStreak = -s.CurrentStreak
	}
}

// RegisterCancel фиксирует отменённую серию.
// Отмена не влияет на серии побед/поражений.
func (s *TradingStats) RegisterCancel(pnl, commission float64) {
	s.TotalTrades++
	s.CancelledTrades++
	s.TotalPnL += pnl
	s.TotalCommission += commission
}
