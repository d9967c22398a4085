package bot

import (
	"context"

	"go.uber.org/zap"

	"updown/internal/models"
)

// Router раздаёт сигналы детектора всем движкам. Каждый движок сам
// решает, реагировать ли: фильтр по типу сигнала стоит первым в
// OnSignal. Движки независимы, поэтому раздача идёт параллельно.
type Router struct {
	engines []*Engine
	log     *zap.Logger
}

func NewRouter(log *zap.Logger, engines ...*Engine) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{engines: engines, log: log}
}

// Engines возвращает движки роутера для дашборда
func (r *Router) Engines() []*Engine {
	return r.engines
}

// Dispatch передаёт сигнал каждому движку и ждёт завершения приёма
func (r *Router) Dispatch(ctx context.Context, sig models.Signal) {
	r.log.Info("сигнал получен",
		zap.String("asset", sig.Asset),
		zap.String("color", string(sig.Color)),
		zap.String("type", string(sig.Type)),
		zap.String("market", sig.MarketSlug))

	done := make(chan struct{}, len(r.engines))
	for _, eng := range r.engines {
		go func(eng *Engine) {
			defer func() { done <- struct{}{} }()
			eng.OnSignal(ctx, sig)
		}(eng)
	}
	for range r.engines {
		<-done
	}
}
