package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"updown/internal/market"
	"updown/internal/models"
	"updown/pkg/utils"
)

// validation.go - проверка устойчивости сигнала перед покупкой
//
// Под validate-стратегией движок не верит голому паттерну: прежде
// чем вкладываться, он ~2 минуты наблюдает цену стороны ставки на
// контрольном рынке и дисбаланс стакана. Сигнал подтверждается,
// только когда сторона ставки на контрольном рынке стабильно
// проигрывает (низкая или падающая цена, перевес продавцов).
//
// Пороговые числа классификатора - эмпирика, подобранная на
// истории. Ветки местами перекрываются, менять их порядок нельзя.

const (
	// минимум подтверждающих замеров подряд для досрочного validated
	validationStreak = 12
	// за сколько до закрытия контрольного рынка решение принимается принудительно
	validationDeadline = 60 * time.Second
)

// newValidationRun открывает прогон валидации на контрольном рынке.
// Стартовая цена снимается сразу; если она недоступна, её поставит
// первый успешный замер.
func (e *Engine) newValidationRun(ctx context.Context, slug string, color models.Color, now time.Time) *models.ValidationRun {
	run := &models.ValidationRun{
		State:      models.ValidationValidating,
		MarketSlug: slug,
		StartedAt:  now,
	}
	if quote, err := e.oracle.GetBuyPrice(ctx, slug, color); err == nil {
		run.TokenID = quote.TokenID
		run.StartPrice = quote.Price
	} else {
		ProviderErrorsTotal.WithLabelValues(e.profile.ID, "price").Inc()
		e.log.Warn("стартовая цена валидации недоступна",
			zap.String("market", slug), zap.Error(err))
	}
	return run
}

// classifySample относит замер к подтверждающим (+) или нет (-).
// Лестница правил применяется строго по порядку. hardReject
// взводится только правилом абсолютного потолка: цена стороны
// ставки выше 0.50 означает, что сигнал уже опровергнут рынком.
func classifySample(startPrice, price, imbalance float64, hasBook bool) (matching, hardReject bool) {
	change := utils.PercentChange(startPrice, price)

	switch {
	case price > 0.50:
		return false, true
	case price < 0.10 && price-startPrice > 0.05:
		// на копеечной цене резкий абсолютный скачок вверх
		return false, false
	case price < 0.30 && ((hasBook && imbalance > 0.10) || change <= -0.10):
		return true, false
	case startPrice < 0.15 && price < 0.15:
		return true, false
	case price < 0.30:
		// проценты на таком абсолютном уровне - шум
		return true, false
	case change > 0.10:
		return false, false
	case change > 0.02:
		return false, false
	case change <= -0.01 && hasBook && imbalance > 0.10:
		return true, false
	case change > -0.05 && change < 0.05 && hasBook && imbalance > 0.50:
		// исторически здесь была и вторая ветка с порогом 0.80,
		// она целиком покрывается порогом 0.50
		return true, false
	default:
		return false, false
	}
}

// streakMatching сообщает, подтверждают ли сигнал последние n замеров
func streakMatching(samples []models.ValidationSample, n int) bool {
	if len(samples) < n {
		return false
	}
	for _, s := range samples[len(samples)-n:] {
		if !s.Matching {
			return false
		}
	}
	return true
}

// advanceValidation делает один шаг прогона: при необходимости
// снимает замер и проверяет условия решения. Терминальное состояние
// выставляется в самом прогоне, последствия разбирает вызывающий.
func (e *Engine) advanceValidation(ctx context.Context, series *models.TradeSeries, run *models.ValidationRun) {
	if run.State != models.ValidationValidating {
		return
	}

	kind := "signal"
	if run == series.HedgeValidation {
		kind = "hedge"
	}
	now := e.now().UTC()

	if now.Sub(run.LastSample) >= e.sampleInterval {
		e.takeSample(ctx, series, run, now)
	}

	n := len(run.Samples)
	if n == 0 {
		// ни одного замера так и не снято, решаем только по дедлайну
		if e.validationTimeLeft(run, now) <= validationDeadline {
			e.finishValidation(series, run, kind, models.ValidationRejected,
				"ни одного замера до дедлайна")
		}
		return
	}

	latest := run.Samples[n-1]

	// потолок цены опровергает сигнал без ожидания дедлайна
	if !latest.Matching && latest.Price > 0.50 {
		e.finishValidation(series, run, kind, models.ValidationRejected,
			fmt.Sprintf("цена стороны ставки %.4f выше потолка", latest.Price))
		return
	}

	// досрочное подтверждение: набрана полная серия совпадений
	if latest.Matching && streakMatching(run.Samples, validationStreak) {
		e.finishValidation(series, run, kind, models.ValidationValidated,
			fmt.Sprintf("%d подтверждающих замеров подряд", validationStreak))
		return
	}

	// к дедлайну полная серия совпадений не собрана (иначе прогон уже
	// завершился бы досрочным подтверждением), неполная история сигнал
	// не подтверждает
	if e.validationTimeLeft(run, now) <= validationDeadline {
		e.finishValidation(series, run, kind, models.ValidationRejected,
			"дедлайн, серия подтверждений не собрана")
	}
}

// takeSample снимает цену и стакан контрольного рынка
func (e *Engine) takeSample(ctx context.Context, series *models.TradeSeries, run *models.ValidationRun, now time.Time) {
	quote, err := e.oracle.GetBuyPrice(ctx, run.MarketSlug, series.BetColor)
	if err != nil {
		ProviderErrorsTotal.WithLabelValues(e.profile.ID, "price").Inc()
		e.log.Debug("замер валидации пропущен: нет цены",
			zap.String("market", run.MarketSlug), zap.Error(err))
		return
	}
	if run.TokenID == "" {
		run.TokenID = quote.TokenID
	}
	if run.StartPrice == 0 {
		run.StartPrice = quote.Price
	}

	var (
		imbalance float64
		hasBook   bool
	)
	if book, err := e.oracle.GetOrderBook(ctx, run.TokenID); err == nil {
		imbalance = book.Imbalance()
		hasBook = true
	} else {
		ProviderErrorsTotal.WithLabelValues(e.profile.ID, "book").Inc()
	}

	matching, _ := classifySample(run.StartPrice, quote.Price, imbalance, hasBook)
	run.Samples = append(run.Samples, models.ValidationSample{
		Timestamp:    now,
		Price:        quote.Price,
		Imbalance:    imbalance,
		HasImbalance: hasBook,
		Matching:     matching,
	})
	run.LastSample = now
	series.UpdatedAt = now

	e.log.Debug("замер валидации",
		zap.String("series_id", series.ID),
		zap.String("market", run.MarketSlug),
		zap.Float64("price", quote.Price),
		zap.Float64("imbalance", imbalance),
		zap.Bool("matching", matching),
		zap.Int("samples", len(run.Samples)))
}

// validationTimeLeft возвращает время до закрытия контрольного рынка
func (e *Engine) validationTimeLeft(run *models.ValidationRun, now time.Time) time.Duration {
	start, err := market.SlugStart(run.MarketSlug)
	if err != nil {
		// непарсящийся слаг лучше закрыть решением, чем крутить вечно
		return 0
	}
	return utils.IntervalEnd(start).Sub(now)
}

// finishValidation фиксирует терминальное состояние прогона
func (e *Engine) finishValidation(series *models.TradeSeries, run *models.ValidationRun, kind string, state models.ValidationState, reason string) {
	now := e.now().UTC()
	run.State = state
	run.DecidedAt = &now
	run.Reason = reason
	series.UpdatedAt = now
	series.AppendEvent(models.SeriesEvent{
		Timestamp:  now,
		Type:       models.EventValidation,
		Step:       series.CurrentStep,
		MarketSlug: run.MarketSlug,
		Message:    fmt.Sprintf("валидация (%s): %s, %s", kind, state, reason),
	})

	ValidationDecisionsTotal.WithLabelValues(e.profile.ID, kind, string(state)).Inc()
	e.log.Info("валидация завершена",
		zap.String("series_id", series.ID),
		zap.String("kind", kind),
		zap.String("state", string(state)),
		zap.String("reason", reason),
		zap.Int("samples", len(run.Samples)))
}
