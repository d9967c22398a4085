package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"updown/internal/market"
	"updown/internal/models"
)

// settle.go - переоценка серии на тике и расчёт закрытых рынков
//
// checkSeries вызывается из Tick для каждой открытой серии. Он
// сверяет рынок шага с текущим контекстом актива, двигает
// marketState по цепочке waiting -> active -> closed и на закрытии
// передаёт серию в resolveMarket. Любая недоступность внешних
// данных - не ошибка, а повод дождаться следующего тика.

// signalCancelWindow - окно перед закрытием сигнального рынка,
// в котором разворот против сигнала отменяет серию на первом шаге
const signalCancelWindow = 20 * time.Second

func (e *Engine) checkSeries(ctx context.Context, asset string, series *models.TradeSeries) {
	mctx, err := e.context.GetMarketContext(ctx, asset)
	if err != nil {
		ProviderErrorsTotal.WithLabelValues(e.profile.ID, "context").Inc()
		e.log.Warn("контекст рынка недоступен, тик пропущен",
			zap.String("asset", asset), zap.Error(err))
		return
	}

	// отложенный вход: серия ждёт решения валидации сигнала
	if series.Validation != nil && series.Validation.State == models.ValidationValidating {
		e.advanceValidation(ctx, series, series.Validation)
		switch series.Validation.State {
		case models.ValidationValidated:
			if err := e.buyStep(ctx, series, 1, series.CurrentMarketSlug, false); err != nil {
				e.cancelSeries(series, fmt.Sprintf("вход после валидации не выполнен: %v", err))
			}
		case models.ValidationRejected:
			e.cancelSeries(series, "валидация отклонила сигнал")
		}
		e.save(series)
		e.publisher.PublishSeries(series)
		if series.Status != models.SeriesActive {
			delete(e.active, asset)
		}
		return
	}

	// отмена по развороту сигнального рынка возможна только на
	// первом шаге, пока сигнальный интервал ещё не закрылся
	if series.CurrentStep == 1 &&
		mctx.CurrentSlug == series.SignalMarketSlug &&
		mctx.TimeToEnd <= signalCancelWindow &&
		mctx.Color.Valid() && mctx.Color != series.SignalColor {
		if e.cancelOnSignalFlip(ctx, series) {
			e.save(series)
			delete(e.active, asset)
		}
		return
	}

	stepStart, err := market.SlugStart(series.CurrentMarketSlug)
	if err != nil {
		e.log.Error("слаг шага не разбирается",
			zap.String("series_id", series.ID),
			zap.String("market", series.CurrentMarketSlug), zap.Error(err))
		return
	}
	liveStart, err := market.SlugStart(mctx.CurrentSlug)
	if err != nil {
		e.log.Error("слаг контекста не разбирается",
			zap.String("market", mctx.CurrentSlug), zap.Error(err))
		return
	}

	switch {
	case stepStart.After(liveStart):
		// интервал шага ещё не начался
		series.MarketState = models.MarketWaiting

	case stepStart.Equal(liveStart):
		// интервал шага идёт прямо сейчас
		if series.MarketState == models.MarketWaiting {
			series.MarketState = models.MarketActive
			series.UpdatedAt = e.now().UTC()
			e.log.Info("рынок шага открылся",
				zap.String("series_id", series.ID),
				zap.Int("step", series.CurrentStep),
				zap.String("market", series.CurrentMarketSlug))
		}
		e.maybeHedge(ctx, series, mctx)
		e.maybeSellHedge(ctx, series, mctx)
		e.save(series)

	default:
		// интервал шага позади текущего: рынок закрыт, считаем исход
		series.MarketState = models.MarketClosed
		e.resolveMarket(ctx, asset, series, mctx)
	}
}

// resolvedStepColor достаёт итоговый цвет закрытого рынка шага из
// истории контекста. Рынок старше двух интервалов назад означает
// рассинхронизацию, по которой гадать нельзя.
func resolvedStepColor(series *models.TradeSeries, mctx *models.MarketContext) (models.Color, bool) {
	prev1, err1 := market.PrevSlug(mctx.CurrentSlug)
	prev2, err2 := market.ShiftSlug(mctx.CurrentSlug, -2)
	if err1 != nil || err2 != nil {
		return "", false
	}
	switch series.CurrentMarketSlug {
	case prev1:
		return mctx.Previous[1], mctx.Previous[1].Valid()
	case prev2:
		return mctx.Previous[0], mctx.Previous[0].Valid()
	default:
		return "", false
	}
}

// resolveMarket обрабатывает закрывшийся рынок текущего шага
func (e *Engine) resolveMarket(ctx context.Context, asset string, series *models.TradeSeries, mctx *models.MarketContext) {
	resolved, ok := resolvedStepColor(series, mctx)
	if !ok {
		e.log.Warn("итоговый цвет шага не определён, ждём следующий тик",
			zap.String("series_id", series.ID),
			zap.String("market", series.CurrentMarketSlug),
			zap.String("live", mctx.CurrentSlug))
		return
	}

	if resolved == series.BetColor {
		e.settleWin(ctx, asset, series)
		return
	}
	e.settleLoss(ctx, asset, series, mctx)
}

// settleWin начисляет выигрыш шага и закрывает серию
func (e *Engine) settleWin(ctx context.Context, asset string, series *models.TradeSeries) {
	// лишний хедж продаётся до расчёта, его потеря входит в итог
	if series.NextStepBought {
		if err := e.sellHedge(ctx, series); err != nil {
			e.log.Warn("расчёт выигрыша отложен: хедж не продан",
				zap.String("series_id", series.ID), zap.Error(err))
			return
		}
	}

	// именно активная позиция шага: у шага может быть ещё и
	// проданный ранее хедж с тем же номером
	pos := series.ActivePosition()
	if pos == nil {
		e.log.Error("выигравший шаг без позиции",
			zap.String("series_id", series.ID), zap.Int("step", series.CurrentStep))
		return
	}

	now := e.now().UTC()
	redemption := pos.Shares * (1 - e.profile.ExitFee)
	pos.Status = models.PositionWon
	pos.SoldAt = &now
	pos.Proceeds = redemption

	series.Status = models.SeriesWon
	series.TotalPnL = redemption - series.TotalInvested - series.HedgeLosses
	series.EndedAt = &now
	series.UpdatedAt = now
	series.AppendEvent(models.SeriesEvent{
		Timestamp:   now,
		Type:        models.EventWin,
		Step:        series.CurrentStep,
		MarketSlug:  series.CurrentMarketSlug,
		Amount:      redemption,
		MarketColor: series.BetColor,
		PnL:         series.TotalPnL,
		Message:     fmt.Sprintf("шаг %d выиграл, выплата %.2f", series.CurrentStep, redemption),
	})

	stats, err := e.loadStats()
	if err != nil {
		e.log.Error("статистика недоступна при выигрыше", zap.Error(err))
	} else {
		stats.CurrentBalance += redemption
		stats.RegisterWin(series.CurrentStep, series.TotalPnL, series.TotalCommission)
		e.saveStats(stats)
	}

	SeriesFinishedTotal.WithLabelValues(e.profile.ID, "won").Inc()
	e.log.Info("серия выиграна",
		zap.String("series_id", series.ID),
		zap.Int("step", series.CurrentStep),
		zap.Float64("redemption", redemption),
		zap.Float64("pnl", series.TotalPnL))

	e.save(series)
	e.publisher.PublishSeries(series)
	e.notifier.NotifySeries(series)
	delete(e.active, asset)
}

// settleLoss обрабатывает проигрыш шага: повышение хеджа, покупка
// следующего шага или полный проигрыш серии
func (e *Engine) settleLoss(ctx context.Context, asset string, series *models.TradeSeries, mctx *models.MarketContext) {
	now := e.now().UTC()
	if pos := series.ActivePosition(); pos != nil {
		pos.Status = models.PositionLost
	}
	series.AppendEvent(models.SeriesEvent{
		Timestamp:   now,
		Type:        models.EventStepLost,
		Step:        series.CurrentStep,
		MarketSlug:  series.CurrentMarketSlug,
		MarketColor: series.BetColor.Opposite(),
		Message:     fmt.Sprintf("шаг %d проигран", series.CurrentStep),
	})

	switch {
	case hedgePosition(series) != nil:
		e.promoteHedge(series)
		e.save(series)
		e.publisher.PublishSeries(series)
		e.notifier.NotifySeries(series)

	case series.CurrentStep < e.profile.MaxSteps:
		next := series.CurrentStep + 1
		if err := e.buyStep(ctx, series, next, mctx.CurrentSlug, false); err != nil {
			e.cancelSeries(series, fmt.Sprintf("шаг %d не куплен: %v", next, err))
			e.save(series)
			delete(e.active, asset)
			return
		}
		series.MarketState = models.MarketActive
		// прошлый прогон валидации хеджа относился к закрытому
		// интервалу, на новом шаге он начинается заново
		series.HedgeValidation = nil
		e.save(series)
		e.publisher.PublishSeries(series)
		e.notifier.NotifySeries(series)

	default:
		e.finishLost(asset, series)
	}
}

// finishLost закрывает серию полным проигрышем и при включённом
// карантине блокирует актив на заданный срок
func (e *Engine) finishLost(asset string, series *models.TradeSeries) {
	now := e.now().UTC()
	series.Status = models.SeriesLost
	series.TotalPnL = -(series.TotalInvested + series.HedgeLosses)
	series.EndedAt = &now
	series.UpdatedAt = now
	series.AppendEvent(models.SeriesEvent{
		Timestamp: now,
		Type:      models.EventLoss,
		Step:      series.CurrentStep,
		PnL:       series.TotalPnL,
		Message:   fmt.Sprintf("все %d шагов проиграны", e.profile.MaxSteps),
	})

	stats, err := e.loadStats()
	if err != nil {
		e.log.Error("статистика недоступна при проигрыше", zap.Error(err))
	} else {
		stats.RegisterLoss(series.TotalPnL, series.TotalCommission)
		e.saveStats(stats)
	}

	SeriesFinishedTotal.WithLabelValues(e.profile.ID, "lost").Inc()
	e.log.Warn("серия проиграна полностью",
		zap.String("series_id", series.ID),
		zap.Float64("pnl", series.TotalPnL))

	e.save(series)
	e.publisher.PublishSeries(series)
	e.notifier.NotifySeries(series)
	delete(e.active, asset)

	if e.profile.CooldownAfterFullLoss <= 0 {
		return
	}
	until := now.Add(e.profile.CooldownAfterFullLoss)
	cd := &models.TradeSeries{
		ID:          uuid.New().String(),
		BotID:       e.profile.ID,
		Asset:       asset,
		Status:      models.SeriesCooldown,
		SignalType:  series.SignalType,
		SignalColor: series.SignalColor,
		BetColor:    series.BetColor,
		EndedAt:     &until,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	cd.AppendEvent(models.SeriesEvent{
		Timestamp: now,
		Type:      models.EventCooldown,
		Message:   fmt.Sprintf("карантин до %s", until.Format(time.RFC3339)),
	})
	e.cooldowns[asset] = cd
	e.save(cd)
	e.log.Info("актив в карантине",
		zap.String("asset", asset),
		zap.Time("until", until))
}
