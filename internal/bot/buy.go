package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"updown/internal/models"
)

// buy.go - расчёт ставки и покупка шага
//
// Размер каждой ставки выводится из уравнения безубыточности:
// выигрыш шага должен вернуть все предыдущие вложения серии
// (включая списанные хеджи) плюс целевую прибыль. Комиссии входа
// и выхода заложены в знаменатель, поэтому при цене, близкой к 1,
// уравнение не имеет решения и покупка невозможна.

var (
	// ErrStakeImpossible - цена слишком высока, выигрыш не покрывает вложения
	ErrStakeImpossible = errors.New("bot: stake equation has no solution at this price")
	// ErrInsufficientBalance - на балансе бота не хватает средств на ставку
	ErrInsufficientBalance = errors.New("bot: insufficient balance for stake")
	// ErrPriceTooHigh - цена входа выше потолка профиля
	ErrPriceTooHigh = errors.New("bot: entry price above profile ceiling")
)

// targetProfit возвращает целевую прибыль шага. На последнем шаге
// при включённом breakEvenOnLastStep цель нулевая: вернуть своё.
func (e *Engine) targetProfit(step int) float64 {
	if e.profile.BreakEvenOnLastStep && step >= e.profile.MaxSteps {
		return 0
	}
	return e.profile.BaseDeposit * e.profile.FirstBetPercent
}

// stakeFor считает размер ставки шага при данной цене входа.
// priorLosses - всё, что серия уже вложила и потеряла.
func (e *Engine) stakeFor(series *models.TradeSeries, step int, price float64) (float64, error) {
	if price <= 0 || price >= 1 {
		return 0, fmt.Errorf("%w: price=%.4f", ErrStakeImpossible, price)
	}

	denom := (1-e.profile.EntryFee)*(1-e.profile.ExitFee)/price - 1
	if denom <= 0 {
		return 0, fmt.Errorf("%w: price=%.4f denom=%.6f", ErrStakeImpossible, price, denom)
	}

	priorLosses := series.TotalInvested + series.HedgeLosses
	stake := (priorLosses + e.targetProfit(step)) / denom
	if stake <= 0 {
		return 0, fmt.Errorf("%w: stake=%.4f", ErrStakeImpossible, stake)
	}
	return stake, nil
}

// buyStep покупает позицию шага step на рынке slug. Все проверки
// и запросы выполняются до первой мутации: при любой ошибке серия,
// статистика и позиции остаются нетронутыми.
func (e *Engine) buyStep(ctx context.Context, series *models.TradeSeries, step int, slug string, hedge bool) error {
	quote, err := e.oracle.GetBuyPrice(ctx, slug, series.BetColor)
	if err != nil {
		ProviderErrorsTotal.WithLabelValues(e.profile.ID, "price").Inc()
		return fmt.Errorf("цена покупки %s недоступна: %w", slug, err)
	}
	// потолок действует на каждом шаге, не только на входе в серию
	if e.profile.MaxPrice > 0 && quote.Price > e.profile.MaxPrice {
		return fmt.Errorf("%w: price=%.4f max=%.4f",
			ErrPriceTooHigh, quote.Price, e.profile.MaxPrice)
	}

	stake, err := e.stakeFor(series, step, quote.Price)
	if err != nil {
		return err
	}

	stats, err := e.loadStats()
	if err != nil {
		return fmt.Errorf("статистика недоступна: %w", err)
	}
	if stats.CurrentBalance < stake {
		return fmt.Errorf("%w: balance=%.2f stake=%.2f",
			ErrInsufficientBalance, stats.CurrentBalance, stake)
	}

	now := e.now().UTC()
	commission := stake * e.profile.EntryFee
	shares := stake * (1 - e.profile.EntryFee) / quote.Price

	pos := models.Position{
		Step:       step,
		MarketSlug: slug,
		TokenID:    quote.TokenID,
		Color:      series.BetColor,
		Amount:     stake,
		Price:      quote.Price,
		Shares:     shares,
		Commission: commission,
		Status:     models.PositionActive,
		Hedge:      hedge,
		BoughtAt:   now,
	}
	series.Positions = append(series.Positions, pos)
	series.TotalInvested += stake
	series.TotalCommission += commission
	series.UpdatedAt = now

	eventType := models.EventBuy
	kind := "step"
	if hedge {
		eventType = models.EventHedgeBuy
		kind = "hedge"
		series.NextStepBought = true
		series.NextMarketSlug = slug
	} else {
		series.CurrentStep = step
		series.CurrentMarketSlug = slug
	}
	series.AppendEvent(models.SeriesEvent{
		Timestamp:  now,
		Type:       eventType,
		Step:       step,
		MarketSlug: slug,
		Amount:     stake,
		Message:    fmt.Sprintf("куплено %.4f долей по %.4f", shares, quote.Price),
	})

	stats.CurrentBalance -= stake
	e.saveStats(stats)

	StepBuysTotal.WithLabelValues(e.profile.ID, kind).Inc()
	e.log.Info("позиция куплена",
		zap.String("series_id", series.ID),
		zap.Int("step", step),
		zap.String("market", slug),
		zap.Bool("hedge", hedge),
		zap.Float64("stake", stake),
		zap.Float64("price", quote.Price),
		zap.Float64("shares", shares))
	return nil
}
