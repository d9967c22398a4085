package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// series.go - торговая серия (последовательность ставок мартингейла)
//
// Назначение:
// Центральная сущность системы. Одна серия - одна цепочка ставок
// по одному активу для одного бота: от входа по сигналу до
// выигрыша, проигрыша или отмены. Вложенные коллекции (позиции,
// события, валидация) хранятся в PostgreSQL как JSONB.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SeriesStatus представляет статус торговой серии
type SeriesStatus string

const (
	SeriesActive    SeriesStatus = "active"
	SeriesWon       SeriesStatus = "won"
	SeriesLost      SeriesStatus = "lost"
	SeriesCancelled SeriesStatus = "cancelled"
	SeriesCooldown  SeriesStatus = "cooldown" // карантин после полного проигрыша
)

// Valid проверяет корректность статуса серии
func (s SeriesStatus) Valid() bool {
	switch s {
	case SeriesActive, SeriesWon, SeriesLost, SeriesCancelled, SeriesCooldown:
		return true
	}
	return false
}

// Terminal сообщает, является ли статус конечным.
// Cooldown не терминален: запись живёт до истечения EndedAt.
func (s SeriesStatus) Terminal() bool {
	switch s {
	case SeriesWon, SeriesLost, SeriesCancelled:
		return true
	}
	return false
}

// PositionStatus представляет статус позиции внутри серии
type PositionStatus string

const (
	PositionActive PositionStatus = "active"
	PositionWon    PositionStatus = "won"
	PositionLost   PositionStatus = "lost"
	PositionSold   PositionStatus = "sold" // продана до закрытия интервала
)

// Position представляет одну покупку акций стороны рынка
type Position struct {
	Step       int            `json:"step"`
	MarketSlug string         `json:"market_slug"`
	TokenID    string         `json:"token_id"`
	Color      Color          `json:"color"`  // сторона ставки
	Amount     float64        `json:"amount"` // списано с баланса, включая комиссию входа
	Price      float64        `json:"price"`
	Shares     float64        `json:"shares"`
	Commission float64        `json:"commission"`
	Status     PositionStatus `json:"status"`
	Hedge      bool           `json:"hedge"` // куплена досрочно под следующий шаг
	BoughtAt   time.Time      `json:"bought_at"`
	SoldAt     *time.Time     `json:"sold_at,omitempty"`
	Proceeds   float64        `json:"proceeds,omitempty"` // выручка при досрочной продаже
}

// Типы событий таймлайна серии
const (
	EventBuy           = "buy"
	EventHedgeBuy      = "hedge_buy"
	EventHedgeSell     = "hedge_sell"
	EventHedgePromoted = "hedge_promoted"
	EventStepLost      = "step_lost"
	EventWin           = "win"
	EventLoss          = "loss"
	EventCancelled     = "cancelled"
	EventCooldown      = "cooldown"
	EventValidation    = "validation"
)

// SeriesEvent представляет запись таймлайна серии.
// Таймлайн append-only: записи не переупорядочиваются и не удаляются.
type SeriesEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Step        int       `json:"step,omitempty"`
	MarketSlug  string    `json:"market_slug,omitempty"`
	Amount      float64   `json:"amount,omitempty"`
	MarketColor Color     `json:"market_color,omitempty"`
	PnL         float64   `json:"pnl,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// ValidationState представляет состояние под-автомата валидации сигнала
type ValidationState string

const (
	ValidationNone       ValidationState = ""
	ValidationValidating ValidationState = "validating"
	ValidationValidated  ValidationState = "validated"
	ValidationRejected   ValidationState = "rejected"
)

// ValidationSample представляет один замер цены/стакана
type ValidationSample struct {
	Timestamp    time.Time `json:"timestamp"`
	Price        float64   `json:"price"`
	Imbalance    float64   `json:"imbalance"`
	HasImbalance bool      `json:"has_imbalance"` // стакан был доступен
	Matching     bool      `json:"matching"`
}

// ValidationRun представляет один прогон валидации (сигнальной или хеджевой)
type ValidationRun struct {
	State      ValidationState    `json:"state"`
	MarketSlug string             `json:"market_slug"`
	TokenID    string             `json:"token_id"`
	StartedAt  time.Time          `json:"started_at"`
	StartPrice float64            `json:"start_price"`
	Samples    []ValidationSample `json:"samples"`
	LastSample time.Time          `json:"last_sample"`
	DecidedAt  *time.Time         `json:"decided_at,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// TradeSeries представляет одну серию ставок мартингейла.
//
// Инвариант: не больше одной нетерминальной серии на пару (bot_id, asset).
type TradeSeries struct {
	ID               string       `json:"id" db:"id"`
	BotID            string       `json:"bot_id" db:"bot_id"`
	Asset            string       `json:"asset" db:"asset"`
	Status           SeriesStatus `json:"status" db:"status"`
	SignalType       SignalType   `json:"signal_type" db:"signal_type"`
	SignalColor      Color        `json:"signal_color" db:"signal_color"`
	BetColor         Color        `json:"bet_color" db:"bet_color"`
	SignalMarketSlug string       `json:"signal_market_slug" db:"signal_market_slug"`

	CurrentStep       int         `json:"current_step" db:"current_step"`
	CurrentMarketSlug string      `json:"current_market_slug" db:"current_market_slug"`
	MarketState       MarketState `json:"market_state" db:"market_state"`
	NextStepBought    bool        `json:"next_step_bought" db:"next_step_bought"`
	NextMarketSlug    string      `json:"next_market_slug" db:"next_market_slug"`

	Positions PositionList `json:"positions" db:"positions"`
	Events    EventList    `json:"events" db:"events"`

	TotalInvested   float64 `json:"total_invested" db:"total_invested"`
	TotalCommission float64 `json:"total_commission" db:"total_commission"`
	TotalPnL        float64 `json:"total_pnl" db:"total_pnl"`
	HedgeLosses     float64 `json:"hedge_losses" db:"hedge_losses"`

	Validation      *ValidationRun `json:"validation,omitempty" db:"validation"`
	HedgeValidation *ValidationRun `json:"hedge_validation,omitempty" db:"hedge_validation"`

	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"` // для cooldown: момент снятия карантина
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// AppendEvent добавляет запись в таймлайн серии
func (s *TradeSeries) AppendEvent(e SeriesEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.Events = append(s.Events, e)
}

// PositionForStep возвращает позицию шага step или nil
func (s *TradeSeries) PositionForStep(step int) *Position {
	for i := range s.Positions {
		if s.Positions[i].Step == step {
			return &s.Positions[i]
		}
	}
	return nil
}

// ActivePosition возвращает активную позицию текущего шага или nil.
// У шага может быть и проданный хедж с тем же номером, поэтому
// статус проверяется у каждой позиции шага, а не у первой попавшейся.
func (s *TradeSeries) ActivePosition() *Position {
	for i := range s.Positions {
		p := &s.Positions[i]
		if p.Step == s.CurrentStep && p.Status == PositionActive {
			return p
		}
	}
	return nil
}

// OpenPositions возвращает все незакрытые позиции серии
func (s *TradeSeries) OpenPositions() []*Position {
	var open []*Position
	for i := range s.Positions {
		if s.Positions[i].Status == PositionActive {
			open = append(open, &s.Positions[i])
		}
	}
	return open
}

// CooldownExpired сообщает, истёк ли карантин к моменту now
func (s *TradeSeries) CooldownExpired(now time.Time) bool {
	return s.Status == SeriesCooldown && s.EndedAt != nil && !now.Before(*s.EndedAt)
}

// ============================================================
// JSONB-обёртки для database/sql
// ============================================================

// PositionList сериализуется в JSONB-колонку positions
type PositionList []Position

// Value реализует driver.Valuer
func (p PositionList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.MarshalToString([]Position(p))
}

// Scan реализует sql.Scanner
func (p *PositionList) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// EventList сериализуется в JSONB-колонку events
type EventList []SeriesEvent

// Value реализует driver.Valuer
func (e EventList) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	return json.MarshalToString([]SeriesEvent(e))
}

// Scan реализует sql.Scanner
func (e *EventList) Scan(src interface{}) error {
	return scanJSON(src, e)
}

// Value реализует driver.Valuer для nullable JSONB-колонки
func (v *ValidationRun) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.MarshalToString(v)
}

// Scan реализует sql.Scanner
func (v *ValidationRun) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	return scanJSON(src, v)
}

func scanJSON(src, dst interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.UnmarshalFromString(data, dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
