package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового движка
// ============================================================
//
// Метрики общие для всех движков, экземпляры различаются
// лейблом bot. Экспортируются на /metrics вместе с дашбордом.

// ============ Сигналы ============

// SignalsTotal - принятые/отклонённые сигналы по причинам
var SignalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "updown",
		Subsystem: "engine",
		Name:      "signals_total",
		Help:      "Signals seen by the engine, by outcome",
	},
	[]string{"bot", "outcome"}, // accepted, slot_busy, cooldown, no_price, price_too_high
)

// ============ Серии ============

// SeriesFinishedTotal - завершённые серии по исходам
var SeriesFinishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "updown",
		Subsystem: "engine",
		Name:      "series_finished_total",
		Help:      "Finished series by outcome",
	},
	[]string{"bot", "outcome"}, // won, lost, cancelled
)

// StepBuysTotal - покупки шагов (включая хеджи)
var StepBuysTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "updown",
		Subsystem: "engine",
		Name:      "step_buys_total",
		Help:      "Step purchases, hedge purchases counted separately",
	},
	[]string{"bot", "kind"}, // step, hedge
)

// HedgeSellsTotal - досрочные продажи хеджей
var HedgeSellsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "updown",
		Subsystem: "engine",
		Name:      "hedge_sells_total",
		Help:      "Hedges sold back before settlement",
	},
	[]string{"bot"},
)

// ValidationDecisionsTotal - решения под-автомата валидации
var ValidationDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "updown",
		Subsystem: "engine",
		Name:      "validation_decisions_total",
		Help:      "Validation run decisions",
	},
	[]string{"bot", "kind", "decision"}, // kind: signal, hedge; decision: validated, rejected
)

// ============ Тики и ошибки ============

// TickDuration - длительность одного тика движка
var TickDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "updown",
		Subsystem: "engine",
		Name:      "tick_duration_seconds",
		Help:      "Engine tick duration, including all provider calls",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"bot"},
)

// ProviderErrorsTotal - ошибки внешних провайдеров, переживаемые движком
var ProviderErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "updown",
		Subsystem: "engine",
		Name:      "provider_errors_total",
		Help:      "Non-fatal provider failures (price, book, context)",
	},
	[]string{"bot", "kind"}, // context, price, book
)

// ============ Баланс ============

// CurrentBalance - текущий баланс бота
var CurrentBalance = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "updown",
		Subsystem: "engine",
		Name:      "balance",
		Help:      "Current simulated balance",
	},
	[]string{"bot"},
)
