package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"updown/internal/models"
	"updown/pkg/ratelimit"
	"updown/pkg/utils"
)

// binance.go - провайдер контекста по свечам Binance
//
// Альтернативный источник контекста: цвета интервалов читаются из
// 15-минутных свечей спотового рынка, а не из цен Polymarket.
// Реализует только ContextProvider; цены и стаканы всё равно
// берутся из Polymarket CLOB.

// BinanceProvider строит контекст рынка по klines Binance
type BinanceProvider struct {
	baseURL string
	client  *HTTPClient
	limiter *ratelimit.RateLimiter
	log     *zap.Logger
	now     func() time.Time
}

// NewBinanceProvider создает провайдер Binance
func NewBinanceProvider(baseURL string, client *HTTPClient, limiter *ratelimit.RateLimiter, log *zap.Logger) *BinanceProvider {
	return &BinanceProvider{
		baseURL: baseURL,
		client:  client,
		limiter: limiter,
		log:     log,
		now:     time.Now,
	}
}

// SetNow подменяет источник времени. Только для тестов.
func (p *BinanceProvider) SetNow(now func() time.Time) {
	p.now = now
}

// symbolFor переводит актив в спотовый символ Binance
func symbolFor(asset string) string {
	return strings.ToUpper(asset) + "USDT"
}

// kline - одна свеча Binance в разобранном виде
type kline struct {
	OpenTime time.Time
	Open     float64
	Close    float64
}

// color возвращает цвет свечи. Дожи считается зелёным,
// как и на самом рынке up/down (цена "не упала").
func (k kline) color() models.Color {
	if k.Close >= k.Open {
		return models.ColorGreen
	}
	return models.ColorRed
}

// parseKlines разбирает ответ Binance /api/v3/klines.
// Каждая свеча - массив смешанных типов: [openTime, "open", "high",
// "low", "close", ...].
func parseKlines(body []byte) ([]kline, error) {
	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed klines response: %w", err)
	}

	klines := make([]kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 5 {
			return nil, fmt.Errorf("malformed kline row: %d fields", len(row))
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("malformed kline open time %v", row[0])
		}
		openStr, ok1 := row[1].(string)
		closeStr, ok2 := row[4].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("malformed kline prices")
		}
		open, err := strconv.ParseFloat(openStr, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed kline open %q: %w", openStr, err)
		}
		closePrice, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed kline close %q: %w", closeStr, err)
		}
		klines = append(klines, kline{
			OpenTime: time.UnixMilli(int64(openTime)).UTC(),
			Open:     open,
			Close:    closePrice,
		})
	}
	return klines, nil
}

// GetMarketContext реализует ContextProvider.
// Запрашиваются три последние свечи: две завершённые дают цвета
// предыдущих интервалов, последняя (текущая) - живой цвет.
func (p *BinanceProvider) GetMarketContext(ctx context.Context, asset string) (*models.MarketContext, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	symbol := symbolFor(asset)
	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=15m&limit=3", p.baseURL, symbol)
	body, err := p.client.GetJSON(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarketNotFound, err)
	}

	klines, err := parseKlines(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarketNotFound, err)
	}
	if len(klines) < 3 {
		return nil, fmt.Errorf("%w: got %d klines for %s", ErrMarketNotFound, len(klines), symbol)
	}

	now := p.now().UTC()
	current := klines[2]
	currentSlug := BinanceSlug(symbol, current.OpenTime)
	nextSlug, _ := NextSlug(currentSlug)

	return &models.MarketContext{
		Asset:       asset,
		CurrentSlug: currentSlug,
		NextSlug:    nextSlug,
		Color:       current.color(),
		Active:      true,
		TimeToEnd:   utils.TimeToEnd(now),
		Previous:    [2]models.Color{klines[0].color(), klines[1].color()},
	}, nil
}
