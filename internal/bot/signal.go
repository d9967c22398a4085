package bot

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"updown/internal/config"
	"updown/internal/market"
	"updown/internal/models"
)

// signal.go - приём торговых сигналов
//
// Сигнал = серия одноцветных свечей. Движок реагирует только на
// сигналы своего типа (2 или 3 свечи) и ставит ПРОТИВ цвета
// сигнала: после полосы зелёных ожидается красная, и наоборот.

// OnSignal принимает сигнал детектора. Лестница отказов:
// тип не совпал, слот занят (память или хранилище), цена
// недоступна, цена выше лимита. Любой отказ - лог и выход,
// создание серии происходит только если все проверки пройдены.
func (e *Engine) OnSignal(ctx context.Context, sig models.Signal) {
	if sig.Type != e.profile.SignalType {
		return
	}
	if len(e.tracked) > 0 && !e.tracked[sig.Asset] {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.log.With(
		zap.String("asset", sig.Asset),
		zap.String("signal_color", string(sig.Color)),
		zap.String("market", sig.MarketSlug))

	if _, busy := e.active[sig.Asset]; busy {
		SignalsTotal.WithLabelValues(e.profile.ID, "slot_busy").Inc()
		log.Debug("сигнал отклонён: по активу уже идёт серия")
		return
	}
	if cd, ok := e.cooldowns[sig.Asset]; ok {
		if !cd.CooldownExpired(e.now().UTC()) {
			SignalsTotal.WithLabelValues(e.profile.ID, "cooldown").Inc()
			log.Info("сигнал отклонён: актив в карантине",
				zap.Timep("until", cd.EndedAt))
			return
		}
		delete(e.cooldowns, sig.Asset)
	}

	// память могла отстать от хранилища (рестарт, второй инстанс)
	if stored, err := e.series.FindOpenByAsset(e.profile.ID, sig.Asset); err == nil {
		if stored.Status == models.SeriesCooldown && stored.CooldownExpired(e.now().UTC()) {
			// истёкший карантин, путь свободен
		} else {
			if stored.Status == models.SeriesActive {
				e.active[sig.Asset] = stored
			} else {
				e.cooldowns[sig.Asset] = stored
			}
			SignalsTotal.WithLabelValues(e.profile.ID, "slot_busy").Inc()
			log.Info("сигнал отклонён: открытая серия найдена в хранилище",
				zap.String("series_id", stored.ID))
			return
		}
	}

	// торгуем всегда на Polymarket, даже если сигнал пришёл с Binance
	entrySlug, err := market.ToPolymarketSlug(sig.NextMarketSlug, sig.Asset)
	if err != nil {
		log.Warn("сигнал отклонён: некорректный слаг рынка", zap.Error(err))
		return
	}
	signalSlug, err := market.ToPolymarketSlug(sig.MarketSlug, sig.Asset)
	if err != nil {
		log.Warn("сигнал отклонён: некорректный слаг рынка", zap.Error(err))
		return
	}
	betColor := sig.Color.Opposite()

	price, err := e.oracle.GetBuyPrice(ctx, entrySlug, betColor)
	if err != nil {
		SignalsTotal.WithLabelValues(e.profile.ID, "no_price").Inc()
		ProviderErrorsTotal.WithLabelValues(e.profile.ID, "price").Inc()
		log.Warn("сигнал отклонён: цена входа недоступна", zap.Error(err))
		return
	}
	if e.profile.MaxPrice > 0 && price.Price > e.profile.MaxPrice {
		SignalsTotal.WithLabelValues(e.profile.ID, "price_too_high").Inc()
		log.Info("сигнал отклонён: цена выше лимита",
			zap.Float64("price", price.Price),
			zap.Float64("max_price", e.profile.MaxPrice))
		return
	}

	now := e.now().UTC()
	series := &models.TradeSeries{
		ID:                uuid.New().String(),
		BotID:             e.profile.ID,
		Asset:             sig.Asset,
		Status:            models.SeriesActive,
		SignalType:        sig.Type,
		SignalColor:       sig.Color,
		BetColor:          betColor,
		SignalMarketSlug:  signalSlug,
		CurrentStep:       1,
		CurrentMarketSlug: entrySlug,
		MarketState:       models.MarketWaiting,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	switch e.profile.BuyStrategy {
	case config.BuyValidate:
		// под validate-стратегией вход откладывается до конца проверки
		series.Validation = e.newValidationRun(ctx, signalSlug, series.BetColor, now)
		series.AppendEvent(models.SeriesEvent{
			Timestamp:  now,
			Type:       models.EventValidation,
			MarketSlug: signalSlug,
			Message:    "валидация сигнала запущена",
		})
		log.Info("серия создана, ожидает валидации",
			zap.String("series_id", series.ID))
	default:
		if err := e.buyStep(ctx, series, 1, entrySlug, false); err != nil {
			// вход не состоялся, серия закрывается сразу
			e.cancelSeries(series, fmt.Sprintf("вход не выполнен: %v", err))
			e.save(series)
			return
		}
		log.Info("серия открыта",
			zap.String("series_id", series.ID),
			zap.String("bet_color", string(betColor)),
			zap.Float64("price", price.Price))
	}

	SignalsTotal.WithLabelValues(e.profile.ID, "accepted").Inc()
	e.active[sig.Asset] = series
	e.save(series)
	e.publisher.PublishSeries(series)
	e.notifier.NotifySeries(series)
}

// cancelSeries переводит серию в cancelled и списывает невозвратные
// вложения в статистику
func (e *Engine) cancelSeries(series *models.TradeSeries, reason string) {
	now := e.now().UTC()
	series.Status = models.SeriesCancelled
	series.TotalPnL = -(series.TotalInvested + series.HedgeLosses)
	series.EndedAt = &now
	series.UpdatedAt = now
	series.AppendEvent(models.SeriesEvent{
		Timestamp: now,
		Type:      models.EventCancelled,
		Step:      series.CurrentStep,
		PnL:       series.TotalPnL,
		Message:   reason,
	})

	stats, err := e.loadStats()
	if err != nil {
		e.log.Error("статистика недоступна при отмене", zap.Error(err))
	} else {
		stats.RegisterCancel(series.TotalPnL, series.TotalCommission)
		e.saveStats(stats)
	}

	SeriesFinishedTotal.WithLabelValues(e.profile.ID, "cancelled").Inc()
	e.log.Warn("серия отменена",
		zap.String("series_id", series.ID),
		zap.String("reason", reason),
		zap.Float64("pnl", series.TotalPnL))
	e.notifier.NotifySeries(series)
	e.publisher.PublishSeries(series)
}

// cancelOnSignalFlip продаёт все открытые позиции и отменяет серию,
// когда на первом шаге сигнальный рынок под конец интервала
// развернулся против ставки. Если хоть одну позицию продать не
// удалось, ничего не трогаем и пробуем на следующем тике.
func (e *Engine) cancelOnSignalFlip(ctx context.Context, series *models.TradeSeries) bool {
	open := series.OpenPositions()
	quotes := make([]models.PriceQuote, len(open))
	for i, pos := range open {
		q, err := e.oracle.GetSellPrice(ctx, pos.MarketSlug, pos.Color)
		if err != nil {
			ProviderErrorsTotal.WithLabelValues(e.profile.ID, "price").Inc()
			e.log.Warn("отмена по развороту отложена: нет цены продажи",
				zap.String("series_id", series.ID),
				zap.String("market", pos.MarketSlug), zap.Error(err))
			return false
		}
		quotes[i] = *q
	}

	now := e.now().UTC()
	proceeds := 0.0
	for i := range open {
		pos := open[i]
		pos.Status = models.PositionSold
		pos.SoldAt = &now
		pos.Proceeds = pos.Shares * quotes[i].Price * (1 - e.profile.ExitFee)
		proceeds += pos.Proceeds
	}

	series.Status = models.SeriesCancelled
	series.TotalPnL = proceeds - series.TotalInvested - series.HedgeLosses
	series.EndedAt = &now
	series.UpdatedAt = now
	series.AppendEvent(models.SeriesEvent{
		Timestamp: now,
		Type:      models.EventCancelled,
		Step:      series.CurrentStep,
		Amount:    proceeds,
		PnL:       series.TotalPnL,
		Message:   "сигнальный рынок развернулся, позиции проданы",
	})

	stats, err := e.loadStats()
	if err != nil {
		e.log.Error("статистика недоступна при отмене", zap.Error(err))
	} else {
		stats.CurrentBalance += proceeds
		stats.RegisterCancel(series.TotalPnL, series.TotalCommission)
		e.saveStats(stats)
	}

	SeriesFinishedTotal.WithLabelValues(e.profile.ID, "cancelled").Inc()
	e.log.Info("серия отменена по развороту сигнального рынка",
		zap.String("series_id", series.ID),
		zap.Float64("proceeds", proceeds),
		zap.Float64("pnl", series.TotalPnL))
	e.notifier.NotifySeries(series)
	e.publisher.PublishSeries(series)
	return true
}
