package models

import "time"

// market.go - модель 15-минутного бинарного рынка up/down
//
// Назначение:
// Типы для описания контекста рынка: цвет интервала, состояние
// жизненного цикла, цены и стакан заявок. Эти данные приходят
// из внешних провайдеров (Polymarket, Binance) и используются
// торговым движком только для чтения.

// Color представляет цвет 15-минутной свечи / исход рынка
type Color string

const (
	ColorGreen Color = "green" // цена выросла (up)
	ColorRed   Color = "red"   // цена упала (down)
)

// Valid проверяет, что цвет входит в закрытое множество значений
func (c Color) Valid() bool {
	return c == ColorGreen || c == ColorRed
}

// Opposite возвращает противоположный цвет.
// Ставка всегда делается против цвета сигнала.
func (c Color) Opposite() Color {
	if c == ColorGreen {
		return ColorRed
	}
	return ColorGreen
}

// MarketState представляет фазу интервала, на который сделана ставка текущего шага
type MarketState string

const (
	MarketWaiting MarketState = "waiting" // интервал ещё не начался
	MarketActive  MarketState = "active"  // интервал идёт
	MarketClosed  MarketState = "closed"  // интервал завершён, цвет определён
)

// Valid проверяет корректность состояния рынка
func (s MarketState) Valid() bool {
	switch s {
	case MarketWaiting, MarketActive, MarketClosed:
		return true
	}
	return false
}

// MarketContext представляет снимок текущего 15-минутного контекста по активу.
//
// Previous содержит цвета двух завершённых интервалов:
// Previous[0] - позапрошлый, Previous[1] - предыдущий.
type MarketContext struct {
	Asset       string        `json:"asset"`
	CurrentSlug string        `json:"current_slug"`
	NextSlug    string        `json:"next_slug"`
	Color       Color         `json:"color"`       // текущий цвет (может ещё измениться)
	Active      bool          `json:"active"`      // интервал торгуется
	TimeToEnd   time.Duration `json:"time_to_end"` // до закрытия текущего интервала
	Previous    [2]Color      `json:"previous"`
}

// PriceQuote представляет цену покупки/продажи одной стороны рынка
type PriceQuote struct {
	Price   float64 `json:"price"`    // доллары за акцию, 0 < price < 1
	TokenID string  `json:"token_id"` // идентификатор инструмента в CLOB
}

// OrderBookLevel представляет один уровень стакана
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook представляет снимок стакана по одному инструменту
type OrderBook struct {
	TokenID string           `json:"token_id"`
	Bids    []OrderBookLevel `json:"bids"`
	Asks    []OrderBookLevel `json:"asks"`
}

// TotalBidSize возвращает суммарный объем заявок на покупку
func (b *OrderBook) TotalBidSize() float64 {
	var total float64
	for _, l := range b.Bids {
		total += l.Size
	}
	return total
}

// TotalAskSize возвращает суммарный объем заявок на продажу
func (b *OrderBook) TotalAskSize() float64 {
	var total float64
	for _, l := range b.Asks {
		total += l.Size
	}
	return total
}

// Imbalance возвращает дисбаланс стакана в диапазоне [-1, 1].
//
// Положительное значение - продавцов больше (давление вниз),
// отрицательное - покупателей больше. Пустой стакан дает 0.
func (b *OrderBook) Imbalance() float64 {
	bids := b.TotalBidSize()
	asks := b.TotalAskSize()
	total := bids + asks
	if total == 0 {
		return 0
	}
	return (asks - bids) / total
}
