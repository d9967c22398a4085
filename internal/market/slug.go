package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"updown/pkg/utils"
)

// slug.go - арифметика идентификаторов 15-минутных рынков
//
// Форматы:
//   - Polymarket: "eth-updown-15m-1700000000"   (unix-секунды начала интервала)
//   - Binance:    "binance-ethusdt-1700000000000" (unix-миллисекунды начала)
//
// Слаги соседних интервалов отличаются ровно на 15 минут, что
// позволяет вычислять предыдущий/следующий рынок без запросов к API.

const binancePrefix = "binance-"

// PolymarketSlug возвращает слаг рынка Polymarket для интервала,
// содержащего момент start
func PolymarketSlug(asset string, start time.Time) string {
	return fmt.Sprintf("%s-updown-15m-%d", strings.ToLower(asset), utils.FloorInterval(start).Unix())
}

// BinanceSlug возвращает синтетический слаг интервала Binance
func BinanceSlug(symbol string, start time.Time) string {
	return fmt.Sprintf("%s%s-%d", binancePrefix, strings.ToLower(symbol), utils.FloorInterval(start).UnixMilli())
}

// IsBinanceSlug сообщает, относится ли слаг к Binance-формату
func IsBinanceSlug(slug string) bool {
	return strings.HasPrefix(slug, binancePrefix)
}

// SlugStart возвращает начало интервала, закодированное в слаге
func SlugStart(slug string) (time.Time, error) {
	idx := strings.LastIndex(slug, "-")
	if idx < 0 || idx == len(slug)-1 {
		return time.Time{}, fmt.Errorf("malformed market slug %q", slug)
	}
	raw, err := strconv.ParseInt(slug[idx+1:], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed market slug %q: %w", slug, err)
	}
	if IsBinanceSlug(slug) {
		return time.UnixMilli(raw).UTC(), nil
	}
	return time.Unix(raw, 0).UTC(), nil
}

// SlugAsset возвращает актив или символ, закодированный в слаге
func SlugAsset(slug string) (string, error) {
	trimmed := strings.TrimPrefix(slug, binancePrefix)
	idx := strings.Index(trimmed, "-")
	if idx <= 0 {
		return "", fmt.Errorf("malformed market slug %q", slug)
	}
	return trimmed[:idx], nil
}

// ShiftSlug возвращает слаг рынка через n интервалов (n может быть
// отрицательным), сохраняя формат исходного слага
func ShiftSlug(slug string, n int) (string, error) {
	start, err := SlugStart(slug)
	if err != nil {
		return "", err
	}
	shifted := start.Add(time.Duration(n) * utils.IntervalDuration)

	idx := strings.LastIndex(slug, "-")
	prefix := slug[:idx+1]
	if IsBinanceSlug(slug) {
		return prefix + strconv.FormatInt(shifted.UnixMilli(), 10), nil
	}
	return prefix + strconv.FormatInt(shifted.Unix(), 10), nil
}

// NextSlug возвращает слаг следующего интервала
func NextSlug(slug string) (string, error) {
	return ShiftSlug(slug, 1)
}

// PrevSlug возвращает слаг предыдущего интервала
func PrevSlug(slug string) (string, error) {
	return ShiftSlug(slug, -1)
}

// ToPolymarketSlug переводит Binance-слаг в слаг Polymarket того же
// интервала. Сигналы могут детектироваться по свечам Binance, а
// ставки всегда делаются на рынках Polymarket.
func ToPolymarketSlug(slug, asset string) (string, error) {
	if !IsBinanceSlug(slug) {
		return slug, nil
	}
	start, err := SlugStart(slug)
	if err != nil {
		return "", err
	}
	return PolymarketSlug(asset, start), nil
}
