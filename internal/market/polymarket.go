package market

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"updown/internal/models"
	"updown/pkg/ratelimit"
	"updown/pkg/utils"
)

// polymarket.go - провайдер Polymarket (Gamma + CLOB)
//
// Gamma API отдаёт метаданные рынка по слагу: исходы, цены исходов
// и идентификаторы CLOB-токенов. CLOB API отдаёт живые цены
// покупки/продажи и стакан по токену. Провайдер реализует оба
// контракта ядра: ContextProvider и PriceOracle.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	outcomeUp   = "Up"
	outcomeDown = "Down"
)

// PolymarketProvider читает данные рынков Polymarket
type PolymarketProvider struct {
	gammaURL string
	clobURL  string
	client   *HTTPClient
	limiter  *ratelimit.RateLimiter
	log      *zap.Logger
	now      func() time.Time
}

// NewPolymarketProvider создает провайдер Polymarket
func NewPolymarketProvider(gammaURL, clobURL string, client *HTTPClient, limiter *ratelimit.RateLimiter, log *zap.Logger) *PolymarketProvider {
	return &PolymarketProvider{
		gammaURL: gammaURL,
		clobURL:  clobURL,
		client:   client,
		limiter:  limiter,
		log:      log,
		now:      time.Now,
	}
}

// SetNow подменяет источник времени. Только для тестов.
func (p *PolymarketProvider) SetNow(now func() time.Time) {
	p.now = now
}

// gammaMarket - ответ Gamma API по одному рынку.
// Вложенные поля приходят JSON-строками внутри JSON.
type gammaMarket struct {
	Slug          string `json:"slug"`
	Outcomes      string `json:"outcomes"`      // "[\"Up\",\"Down\"]"
	OutcomePrices string `json:"outcomePrices"` // "[\"0.42\",\"0.58\"]"
	ClobTokenIDs  string `json:"clobTokenIds"`  // "[\"123...\",\"456...\"]"
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
}

// sides возвращает (tokenID, price) для каждой стороны рынка
func (m *gammaMarket) sides() (map[models.Color]models.PriceQuote, error) {
	var outcomes []string
	if err := json.UnmarshalFromString(m.Outcomes, &outcomes); err != nil {
		return nil, fmt.Errorf("malformed outcomes: %w", err)
	}
	var prices []string
	if err := json.UnmarshalFromString(m.OutcomePrices, &prices); err != nil {
		return nil, fmt.Errorf("malformed outcome prices: %w", err)
	}
	var tokens []string
	if err := json.UnmarshalFromString(m.ClobTokenIDs, &tokens); err != nil {
		return nil, fmt.Errorf("malformed clob token ids: %w", err)
	}
	if len(outcomes) != len(prices) || len(outcomes) != len(tokens) {
		return nil, fmt.Errorf("outcome arrays length mismatch")
	}

	sides := make(map[models.Color]models.PriceQuote, 2)
	for i, outcome := range outcomes {
		price, err := strconv.ParseFloat(prices[i], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed price %q: %w", prices[i], err)
		}
		quote := models.PriceQuote{Price: price, TokenID: tokens[i]}
		switch outcome {
		case outcomeUp:
			sides[models.ColorGreen] = quote
		case outcomeDown:
			sides[models.ColorRed] = quote
		}
	}
	if len(sides) != 2 {
		return nil, fmt.Errorf("market has no Up/Down outcomes")
	}
	return sides, nil
}

// marketBySlug загружает рынок из Gamma API
func (p *PolymarketProvider) marketBySlug(ctx context.Context, slug string) (*gammaMarket, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/markets?slug=%s", p.gammaURL, url.QueryEscape(slug))
	body, err := p.client.GetJSON(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarketNotFound, err)
	}

	var markets []gammaMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarketNotFound, err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, slug)
	}
	return &markets[0], nil
}

// resolvedColor возвращает итоговый цвет закрытого рынка.
// После резолюции цена выигравшей стороны стремится к 1.
func resolvedColor(sides map[models.Color]models.PriceQuote) (models.Color, error) {
	const resolvedThreshold = 0.99
	if sides[models.ColorGreen].Price >= resolvedThreshold {
		return models.ColorGreen, nil
	}
	if sides[models.ColorRed].Price >= resolvedThreshold {
		return models.ColorRed, nil
	}
	return "", ErrUnresolvedColor
}

// liveColor возвращает текущий цвет активного рынка по ценам сторон
func liveColor(sides map[models.Color]models.PriceQuote) models.Color {
	if sides[models.ColorGreen].Price >= 0.5 {
		return models.ColorGreen
	}
	return models.ColorRed
}

// GetMarketContext реализует ContextProvider.
// Цвета двух предыдущих интервалов берутся из их резолюций,
// текущий цвет - из живых цен сторон.
func (p *PolymarketProvider) GetMarketContext(ctx context.Context, asset string) (*models.MarketContext, error) {
	now := p.now().UTC()
	currentSlug := PolymarketSlug(asset, now)
	prev1Slug, _ := PrevSlug(currentSlug)
	prev2Slug, _ := PrevSlug(prev1Slug)
	nextSlug, _ := NextSlug(currentSlug)

	current, err := p.marketBySlug(ctx, currentSlug)
	if err != nil {
		return nil, err
	}
	currentSides, err := current.sides()
	if err != nil {
		return nil, err
	}

	mctx := &models.MarketContext{
		Asset:       asset,
		CurrentSlug: currentSlug,
		NextSlug:    nextSlug,
		Color:       liveColor(currentSides),
		Active:      current.Active && !current.Closed,
		TimeToEnd:   utils.TimeToEnd(now),
	}

	for i, slug := range []string{prev2Slug, prev1Slug} {
		m, err := p.marketBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		sides, err := m.sides()
		if err != nil {
			return nil, err
		}
		color, err := resolvedColor(sides)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedColor, slug)
		}
		mctx.Previous[i] = color
	}

	return mctx, nil
}

// clobPrice - ответ CLOB API /price
type clobPrice struct {
	Price string `json:"price"`
}

// quote возвращает цену стороны color рынка slug для направления side
func (p *PolymarketProvider) quote(ctx context.Context, slug string, color models.Color, side string) (*models.PriceQuote, error) {
	m, err := p.marketBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	sides, err := m.sides()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	tokenID := sides[color].TokenID
	if tokenID == "" {
		return nil, fmt.Errorf("%w: no token for %s side of %s", ErrPriceUnavailable, color, slug)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/price?token_id=%s&side=%s", p.clobURL, url.QueryEscape(tokenID), side)
	body, err := p.client.GetJSON(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	var resp clobPrice
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil || price <= 0 || price >= 1 {
		return nil, fmt.Errorf("%w: bad price %q for %s", ErrPriceUnavailable, resp.Price, slug)
	}

	return &models.PriceQuote{Price: price, TokenID: tokenID}, nil
}

// GetBuyPrice реализует PriceOracle
func (p *PolymarketProvider) GetBuyPrice(ctx context.Context, slug string, color models.Color) (*models.PriceQuote, error) {
	return p.quote(ctx, slug, color, "BUY")
}

// GetSellPrice реализует PriceOracle
func (p *PolymarketProvider) GetSellPrice(ctx context.Context, slug string, color models.Color) (*models.PriceQuote, error) {
	return p.quote(ctx, slug, color, "SELL")
}

// clobBookLevel - уровень стакана CLOB API
type clobBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// clobBook - ответ CLOB API /book
type clobBook struct {
	Bids []clobBookLevel `json:"bids"`
	Asks []clobBookLevel `json:"asks"`
}

// GetOrderBook реализует PriceOracle
func (p *PolymarketProvider) GetOrderBook(ctx context.Context, tokenID string) (*models.OrderBook, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/book?token_id=%s", p.clobURL, url.QueryEscape(tokenID))
	body, err := p.client.GetJSON(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBookUnavailable, err)
	}

	var resp clobBook
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBookUnavailable, err)
	}

	book := &models.OrderBook{TokenID: tokenID}
	for _, l := range resp.Bids {
		price, err1 := strconv.ParseFloat(l.Price, 64)
		size, err2 := strconv.ParseFloat(l.Size, 64)
		if err1 != nil || err2 != nil {
			continue // битый уровень пропускаем, остальное годно
		}
		book.Bids = append(book.Bids, models.OrderBookLevel{Price: price, Size: size})
	}
	for _, l := range resp.Asks {
		price, err1 := strconv.ParseFloat(l.Price, 64)
		size, err2 := strconv.ParseFloat(l.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		book.Asks = append(book.Asks, models.OrderBookLevel{Price: price, Size: size})
	}

	return book, nil
}
