package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"updown/internal/config"
	"updown/internal/market"
	"updown/internal/models"
)

// engine.go - торговый движок (эмулятор мартингейла)
//
// Один движок = один профиль бота. Движок владеет in-memory
// картой "актив -> открытая серия", периодическим тиком переоценки
// и всей логикой переходов: вход по сигналу, покупка шагов,
// хеджирование, валидация, расчёт и карантин.
//
// Конкурентность: тики строго последовательны (цикл Start), сигнал
// может прийти в любой момент, поэтому и тик, и приём сигнала
// выполняются под общим мьютексом. Разные движки независимы и
// ничего не разделяют.

// Options - зависимости и настройки движка
type Options struct {
	Profile   config.BotProfile
	Series    SeriesStore
	Stats     StatsStore
	Context   market.ContextProvider
	Oracle    market.PriceOracle
	Notifier  Notifier
	Publisher Publisher
	Logger    *zap.Logger

	TickInterval   time.Duration // период переоценки, по умолчанию 5s
	SampleInterval time.Duration // минимум между замерами валидации, по умолчанию 10s
	Assets         []string      // отслеживаемые активы
	Now            func() time.Time
}

// Engine реализует торговую серию-автомат для одного профиля
type Engine struct {
	profile   config.BotProfile
	series    SeriesStore
	stats     StatsStore
	context   market.ContextProvider
	oracle    market.PriceOracle
	notifier  Notifier
	publisher Publisher
	log       *zap.Logger

	tickInterval   time.Duration
	sampleInterval time.Duration
	tracked        map[string]bool // пустая карта = все активы
	now            func() time.Time

	// mu защищает карты слотов и сериализует тик с приёмом сигналов
	mu        sync.Mutex
	active    map[string]*models.TradeSeries
	cooldowns map[string]*models.TradeSeries
}

// NewEngine создает движок. Паникует только на nil-хранилищах:
// без них работа не имеет смысла.
func NewEngine(opts Options) *Engine {
	if opts.Series == nil || opts.Stats == nil {
		panic("bot: engine requires series and stats stores")
	}
	if opts.Context == nil || opts.Oracle == nil {
		panic("bot: engine requires market providers")
	}

	e := &Engine{
		profile:        opts.Profile,
		series:         opts.Series,
		stats:          opts.Stats,
		context:        opts.Context,
		oracle:         opts.Oracle,
		notifier:       opts.Notifier,
		publisher:      opts.Publisher,
		log:            opts.Logger,
		tickInterval:   opts.TickInterval,
		sampleInterval: opts.SampleInterval,
		now:            opts.Now,
	}
	e.tracked = make(map[string]bool, len(opts.Assets))
	for _, asset := range opts.Assets {
		e.tracked[asset] = true
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.publisher == nil {
		e.publisher = noopPublisher{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.tickInterval <= 0 {
		e.tickInterval = 5 * time.Second
	}
	if e.sampleInterval <= 0 {
		e.sampleInterval = 10 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.active = make(map[string]*models.TradeSeries)
	e.cooldowns = make(map[string]*models.TradeSeries)
	e.log = e.log.With(zap.String("bot", e.profile.ID))
	return e
}

// BotID возвращает идентификатор профиля движка
func (e *Engine) BotID() string {
	return e.profile.ID
}

// Profile возвращает копию конфигурации движка
func (e *Engine) Profile() config.BotProfile {
	return e.profile
}

// Start восстанавливает состояние из хранилища и крутит тики до
// отмены контекста. Тики не накладываются: следующий начинается
// только после полного завершения предыдущего.
func (e *Engine) Start(ctx context.Context) {
	if err := e.Resume(); err != nil {
		e.log.Error("восстановление серий не удалось", zap.Error(err))
	}

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.log.Info("движок запущен",
		zap.String("signal_type", string(e.profile.SignalType)),
		zap.String("strategy", string(e.profile.BuyStrategy)),
		zap.Int("max_steps", e.profile.MaxSteps))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("движок остановлен")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Resume загружает открытые серии из хранилища в память.
// Истёкшие карантины не восстанавливаются.
func (e *Engine) Resume() error {
	open, err := e.series.FindOpen(e.profile.ID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	for _, s := range open {
		switch s.Status {
		case models.SeriesActive:
			e.active[s.Asset] = s
			e.log.Info("серия восстановлена",
				zap.String("asset", s.Asset),
				zap.String("series_id", s.ID),
				zap.Int("step", s.CurrentStep))
		case models.SeriesCooldown:
			if s.CooldownExpired(now) {
				e.log.Info("истёкший карантин закрыт при старте",
					zap.String("asset", s.Asset), zap.String("series_id", s.ID))
				continue
			}
			e.cooldowns[s.Asset] = s
			e.log.Info("карантин восстановлен",
				zap.String("asset", s.Asset),
				zap.Timep("until", s.EndedAt))
		}
	}
	return nil
}

// Tick выполняет один проход переоценки всех открытых серий.
// Экспортирован, чтобы тесты могли гонять тики детерминированно,
// без реального таймера.
func (e *Engine) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		TickDuration.WithLabelValues(e.profile.ID).Observe(time.Since(start).Seconds())
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()

	// снимаем истёкшие карантины
	for asset, s := range e.cooldowns {
		if s.CooldownExpired(now) {
			delete(e.cooldowns, asset)
			e.log.Info("карантин истёк", zap.String("asset", asset))
		}
	}

	for asset, series := range e.active {
		if ctx.Err() != nil {
			return
		}
		e.checkSeries(ctx, asset, series)
	}
}

// ActiveSeries возвращает копии открытых серий для дашборда
func (e *Engine) ActiveSeries() []*models.TradeSeries {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.TradeSeries, 0, len(e.active)+len(e.cooldowns))
	for _, s := range e.active {
		copied := *s
		out = append(out, &copied)
	}
	for _, s := range e.cooldowns {
		copied := *s
		out = append(out, &copied)
	}
	return out
}

// save пишет серию в хранилище; ошибка не фатальна, серия
// останется в памяти и будет сохранена на следующем тике
func (e *Engine) save(series *models.TradeSeries) {
	if err := e.series.Save(series); err != nil {
		e.log.Error("сохранение серии не удалось",
			zap.String("series_id", series.ID), zap.Error(err))
	}
}

// loadStats возвращает актуальную статистику бота
func (e *Engine) loadStats() (*models.TradingStats, error) {
	return e.stats.GetOrCreate(e.profile.ID, e.profile.BaseDeposit)
}

// saveStats пишет статистику и публикует её подписчикам дашборда
func (e *Engine) saveStats(stats *models.TradingStats) {
	if err := e.stats.Save(stats); err != nil {
		e.log.Error("сохранение статистики не удалось", zap.Error(err))
		return
	}
	CurrentBalance.WithLabelValues(e.profile.ID).Set(stats.CurrentBalance)
	e.publisher.PublishStats(stats)
}
