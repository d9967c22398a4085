package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"updown/internal/config"
	"updown/internal/models"
)

// hedge.go - упреждающая покупка следующего шага
//
// Пока интервал текущего шага ещё идёт, рынок может показывать
// проигрыш (живой цвет совпал с цветом сигнала). Тогда следующий
// шаг выгодно купить заранее, на следующем интервале, по ещё
// низкой цене. Если до закрытия текущий рынок развернётся обратно,
// хедж продаётся, а разница списывается в потери серии.

// hedgeSellWindow - за сколько до закрытия текущего рынка
// разворот считается окончательным и хедж сбрасывается
const hedgeSellWindow = 20 * time.Second

// hedgePosition возвращает открытый хедж серии, если он есть
func hedgePosition(series *models.TradeSeries) *models.Position {
	for i := range series.Positions {
		pos := &series.Positions[i]
		if pos.Hedge && pos.Status == models.PositionActive && pos.Step == series.CurrentStep+1 {
			return pos
		}
	}
	return nil
}

// maybeHedge решает, покупать ли хедж на следующий интервал.
// Вызывается на каждом тике, пока рынок текущего шага активен.
func (e *Engine) maybeHedge(ctx context.Context, series *models.TradeSeries, mctx *models.MarketContext) {
	if series.NextStepBought {
		return
	}
	if series.CurrentStep+1 > e.profile.MaxSteps {
		return
	}
	if mctx.Color != series.SignalColor {
		// текущий шаг пока выигрывает, хедж не нужен
		return
	}
	if mctx.NextSlug == "" {
		return
	}

	if e.profile.BuyStrategy == config.BuyValidate {
		switch {
		case series.HedgeValidation == nil:
			series.HedgeValidation = e.newValidationRun(ctx, mctx.CurrentSlug, series.BetColor, e.now().UTC())
			series.AppendEvent(models.SeriesEvent{
				Timestamp:  e.now().UTC(),
				Type:       models.EventValidation,
				Step:       series.CurrentStep + 1,
				MarketSlug: mctx.CurrentSlug,
				Message:    "валидация хеджа запущена",
			})
			return
		case series.HedgeValidation.State == models.ValidationValidating:
			e.advanceValidation(ctx, series, series.HedgeValidation)
			if series.HedgeValidation.State != models.ValidationValidated {
				return
			}
		case series.HedgeValidation.State == models.ValidationRejected:
			// хедж на этот шаг не состоится, серия продолжается без него
			return
		}
	}

	if err := e.buyStep(ctx, series, series.CurrentStep+1, mctx.NextSlug, true); err != nil {
		// не ошибка серии: попробуем на следующем тике, пока интервал идёт
		e.log.Warn("хедж не куплен",
			zap.String("series_id", series.ID),
			zap.String("market", mctx.NextSlug),
			zap.Error(err))
		return
	}
	e.notifier.NotifySeries(series)
}

// maybeSellHedge сбрасывает хедж, если под самое закрытие текущий
// рынок развернулся в пользу ставки: хедж куплен зря
func (e *Engine) maybeSellHedge(ctx context.Context, series *models.TradeSeries, mctx *models.MarketContext) {
	if !series.NextStepBought {
		return
	}
	if mctx.TimeToEnd > hedgeSellWindow {
		return
	}
	if mctx.Color != series.BetColor {
		return
	}

	if err := e.sellHedge(ctx, series); err != nil {
		e.log.Warn("продажа хеджа отложена",
			zap.String("series_id", series.ID), zap.Error(err))
		return
	}
	e.notifier.NotifySeries(series)
}

// sellHedge продаёт хедж по текущей цене. Вызывается и по развороту
// рынка, и перед начислением выигрыша, когда хедж стал лишним.
func (e *Engine) sellHedge(ctx context.Context, series *models.TradeSeries) error {
	pos := hedgePosition(series)
	if pos == nil {
		// рассинхронизация флага с позициями, чиним флаг
		series.NextStepBought = false
		series.NextMarketSlug = ""
		return nil
	}

	quote, err := e.oracle.GetSellPrice(ctx, pos.MarketSlug, pos.Color)
	if err != nil {
		ProviderErrorsTotal.WithLabelValues(e.profile.ID, "price").Inc()
		return fmt.Errorf("нет цены продажи %s: %w", pos.MarketSlug, err)
	}

	now := e.now().UTC()
	proceeds := pos.Shares * quote.Price * (1 - e.profile.ExitFee)
	loss := pos.Amount - proceeds

	pos.Status = models.PositionSold
	pos.SoldAt = &now
	pos.Proceeds = proceeds

	// вложение хеджа больше не участвует в уравнении ставки,
	// его недостача копится отдельной строкой потерь
	series.TotalInvested -= pos.Amount
	series.HedgeLosses += loss
	series.NextStepBought = false
	series.NextMarketSlug = ""
	series.UpdatedAt = now
	series.AppendEvent(models.SeriesEvent{
		Timestamp:  now,
		Type:       models.EventHedgeSell,
		Step:       pos.Step,
		MarketSlug: pos.MarketSlug,
		Amount:     proceeds,
		PnL:        -loss,
		Message:    fmt.Sprintf("хедж продан по %.4f, потеря %.2f", quote.Price, loss),
	})

	stats, err := e.loadStats()
	if err != nil {
		e.log.Error("статистика недоступна при продаже хеджа", zap.Error(err))
	} else {
		stats.CurrentBalance += proceeds
		e.saveStats(stats)
	}

	HedgeSellsTotal.WithLabelValues(e.profile.ID).Inc()
	e.log.Info("хедж продан",
		zap.String("series_id", series.ID),
		zap.Int("step", pos.Step),
		zap.Float64("proceeds", proceeds),
		zap.Float64("loss", loss))
	return nil
}

// promoteHedge делает хедж обычной позицией следующего шага после
// проигрыша текущего. Новая покупка не нужна, шаг уже в портфеле.
func (e *Engine) promoteHedge(series *models.TradeSeries) {
	pos := hedgePosition(series)
	if pos == nil {
		return
	}

	now := e.now().UTC()
	series.CurrentStep = pos.Step
	series.CurrentMarketSlug = pos.MarketSlug
	series.MarketState = models.MarketActive
	series.NextStepBought = false
	series.NextMarketSlug = ""
	series.HedgeValidation = nil
	series.UpdatedAt = now
	series.AppendEvent(models.SeriesEvent{
		Timestamp:  now,
		Type:       models.EventHedgePromoted,
		Step:       pos.Step,
		MarketSlug: pos.MarketSlug,
		Message:    "хедж стал текущим шагом серии",
	})

	e.log.Info("хедж повышен до текущего шага",
		zap.String("series_id", series.ID),
		zap.Int("step", pos.Step),
		zap.String("market", pos.MarketSlug))
}
