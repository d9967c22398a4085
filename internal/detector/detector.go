// Package detector ищет серии одноцветных 15-минутных свечей.
//
// Детектор опрашивает контекст рынка по каждому активу и ждёт,
// пока текущая свеча продержит один цвет заданное время. Паттерн
// из предыдущей закрытой свечи того же цвета даёт сигнал
// "2candles", из двух закрытых - "3candles". Тройная серия
// порождает оба сигнала: у каждого свои боты-потребители.
//
// Дедупликация идёт через журнал сигналов: на один интервал и тип
// сигнал публикуется не больше одного раза, в том числе между
// рестартами процесса.
package detector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"updown/internal/market"
	"updown/internal/models"
)

// SignalLog - durable-журнал опубликованных сигналов
type SignalLog interface {
	Append(entry *models.SignalLogEntry) error
	Exists(marketSlug string, signalType models.SignalType) (bool, error)
}

// Dispatcher доставляет сигнал торговым движкам
type Dispatcher interface {
	Dispatch(ctx context.Context, sig models.Signal)
}

// Publisher транслирует сигнал наблюдателям (WebSocket-дашборд)
type Publisher interface {
	PublishSignal(sig models.Signal)
}

type noopPublisher struct{}

func (noopPublisher) PublishSignal(models.Signal) {}

// Options - зависимости и настройки детектора
type Options struct {
	Provider  market.ContextProvider
	Signals   SignalLog
	Router    Dispatcher
	Publisher Publisher // опционален
	Logger    *zap.Logger

	Assets    []string
	Interval  time.Duration // период опроса, по умолчанию 10s
	ColorHold time.Duration // сколько текущая свеча держит цвет до сигнала
	Now       func() time.Time
}

// colorTrack - наблюдаемый цвет текущей свечи актива
type colorTrack struct {
	slug  string
	color models.Color
	since time.Time
}

// Detector опрашивает рынок и публикует сигналы серий свечей
type Detector struct {
	provider  market.ContextProvider
	signals   SignalLog
	router    Dispatcher
	publisher Publisher
	log       *zap.Logger

	assets    []string
	interval  time.Duration
	colorHold time.Duration
	now       func() time.Time

	state map[string]colorTrack
}

func New(opts Options) *Detector {
	if opts.Provider == nil || opts.Signals == nil || opts.Router == nil {
		panic("detector: provider, signal log and router are required")
	}
	d := &Detector{
		provider:  opts.Provider,
		signals:   opts.Signals,
		router:    opts.Router,
		publisher: opts.Publisher,
		log:       opts.Logger,
		assets:    opts.Assets,
		interval:  opts.Interval,
		colorHold: opts.ColorHold,
		now:       opts.Now,
		state:     make(map[string]colorTrack),
	}
	if d.publisher == nil {
		d.publisher = noopPublisher{}
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.interval <= 0 {
		d.interval = 10 * time.Second
	}
	if d.colorHold <= 0 {
		d.colorHold = 2 * time.Minute
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Run опрашивает рынок до отмены контекста
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("детектор запущен",
		zap.Strings("assets", d.assets),
		zap.Duration("interval", d.interval),
		zap.Duration("color_hold", d.colorHold))

	for {
		select {
		case <-ctx.Done():
			d.log.Info("детектор остановлен")
			return
		case <-ticker.C:
			d.Scan(ctx)
		}
	}
}

// Scan делает один проход по активам. Экспортирован для тестов.
func (d *Detector) Scan(ctx context.Context) {
	for _, asset := range d.assets {
		if ctx.Err() != nil {
			return
		}
		d.scanAsset(ctx, asset)
	}
}

func (d *Detector) scanAsset(ctx context.Context, asset string) {
	mctx, err := d.provider.GetMarketContext(ctx, asset)
	if err != nil {
		d.log.Warn("контекст рынка недоступен",
			zap.String("asset", asset), zap.Error(err))
		return
	}
	if !mctx.Color.Valid() {
		return
	}

	now := d.now().UTC()
	track, ok := d.state[asset]
	if !ok || track.slug != mctx.CurrentSlug || track.color != mctx.Color {
		// новая свеча или перекраска: отсчёт удержания заново
		d.state[asset] = colorTrack{slug: mctx.CurrentSlug, color: mctx.Color, since: now}
		return
	}
	if now.Sub(track.since) < d.colorHold {
		return
	}

	// закрытые свечи того же цвета удлиняют серию
	if mctx.Previous[1] != mctx.Color {
		return
	}
	d.emit(ctx, asset, mctx, models.SignalTwoCandles)
	if mctx.Previous[0] == mctx.Color {
		d.emit(ctx, asset, mctx, models.SignalThreeCandles)
	}
}

func (d *Detector) emit(ctx context.Context, asset string, mctx *models.MarketContext, sigType models.SignalType) {
	seen, err := d.signals.Exists(mctx.CurrentSlug, sigType)
	if err != nil {
		d.log.Error("журнал сигналов недоступен", zap.Error(err))
		return
	}
	if seen {
		return
	}

	now := d.now().UTC()
	if err := d.signals.Append(&models.SignalLogEntry{
		Asset:      asset,
		Color:      mctx.Color,
		MarketSlug: mctx.CurrentSlug,
		Type:       sigType,
		CreatedAt:  now,
	}); err != nil {
		// без записи в журнал сигнал не публикуется, иначе после
		// рестарта он уйдёт повторно
		d.log.Error("запись сигнала не удалась", zap.Error(err))
		return
	}

	d.log.Info("сигнал обнаружен",
		zap.String("asset", asset),
		zap.String("color", string(mctx.Color)),
		zap.String("type", string(sigType)),
		zap.String("market", mctx.CurrentSlug))

	sig := models.Signal{
		Asset:          asset,
		Color:          mctx.Color,
		MarketSlug:     mctx.CurrentSlug,
		NextMarketSlug: mctx.NextSlug,
		Type:           sigType,
		DetectedAt:     now,
	}
	d.publisher.PublishSignal(sig)
	d.router.Dispatch(ctx, sig)
}
