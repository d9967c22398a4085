// Package market предоставляет доступ к данным 15-минутных бинарных рынков.
//
// Два взаимозаменяемых источника контекста: Polymarket (цены самого
// рынка предсказаний) и Binance (свечи базового актива). Цены и
// стаканы читаются только из Polymarket CLOB. Торговое ядро зависит
// исключительно от интерфейсов этого пакета.
package market

import (
	"context"
	"errors"

	"updown/internal/models"
)

// Ошибки провайдеров. Любая из них трактуется движком как
// "данные недоступны на этом тике" и никогда не фатальна.
var (
	ErrPriceUnavailable = errors.New("market: price unavailable")
	ErrMarketNotFound   = errors.New("market: market not found")
	ErrBookUnavailable  = errors.New("market: order book unavailable")
	ErrUnresolvedColor  = errors.New("market: market color not resolved yet")
)

// ContextProvider возвращает снимок 15-минутного контекста по активу
type ContextProvider interface {
	GetMarketContext(ctx context.Context, asset string) (*models.MarketContext, error)
}

// PriceOracle возвращает цены сторон рынка и стакан инструмента
type PriceOracle interface {
	// GetBuyPrice возвращает цену покупки стороны color рынка slug
	GetBuyPrice(ctx context.Context, slug string, color models.Color) (*models.PriceQuote, error)
	// GetSellPrice возвращает цену продажи стороны color рынка slug
	GetSellPrice(ctx context.Context, slug string, color models.Color) (*models.PriceQuote, error)
	// GetOrderBook возвращает снимок стакана по идентификатору инструмента
	GetOrderBook(ctx context.Context, tokenID string) (*models.OrderBook, error)
}
