package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"updown/internal/bot"
	"updown/internal/models"
	"updown/internal/repository"
)

// SeriesReader - доступ к истории серий для чтения
type SeriesReader interface {
	ListRecent(botID string, limit int) ([]*models.TradeSeries, error)
	FindByStatus(botID string, statuses ...models.SeriesStatus) ([]*models.TradeSeries, error)
}

// StatsReader - доступ к статистике ботов для чтения
type StatsReader interface {
	GetByBotID(botID string) (*models.TradingStats, error)
	ListAll() ([]*models.TradingStats, error)
}

// BotsHandler обслуживает /api/v1/bots
type BotsHandler struct {
	engines map[string]*bot.Engine
	series  SeriesReader
	stats   StatsReader
	log     *zap.Logger
}

func NewBotsHandler(engines []*bot.Engine, series SeriesReader, stats StatsReader, log *zap.Logger) *BotsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	byID := make(map[string]*bot.Engine, len(engines))
	for _, e := range engines {
		byID[e.BotID()] = e
	}
	return &BotsHandler{engines: byID, series: series, stats: stats, log: log}
}

// BotSummary - краткая сводка по боту для списка
type BotSummary struct {
	ID             string               `json:"id"`
	SignalType     models.SignalType    `json:"signal_type"`
	MaxSteps       int                  `json:"max_steps"`
	BaseDeposit    float64              `json:"base_deposit"`
	MaxPrice       float64              `json:"max_price"`
	ActiveSeries   int                  `json:"active_series"`
	CurrentBalance float64              `json:"current_balance"`
	TotalPnL       float64              `json:"total_pnl"`
	Stats          *models.TradingStats `json:"stats,omitempty"`
}

// List обрабатывает GET /api/v1/bots
func (h *BotsHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries := make([]BotSummary, 0, len(h.engines))
	for _, e := range h.engines {
		profile := e.Profile()
		summary := BotSummary{
			ID:          profile.ID,
			SignalType:  profile.SignalType,
			MaxSteps:    profile.MaxSteps,
			BaseDeposit: profile.BaseDeposit,
			MaxPrice:    profile.MaxPrice,
		}
		for _, s := range e.ActiveSeries() {
			if s.Status == models.SeriesActive {
				summary.ActiveSeries++
			}
		}
		stats, err := h.stats.GetByBotID(profile.ID)
		if err == nil {
			summary.CurrentBalance = stats.CurrentBalance
			summary.TotalPnL = stats.TotalPnL
			summary.Stats = stats
		} else if !errors.Is(err, repository.ErrStatsNotFound) {
			h.log.Error("не удалось получить статистику бота",
				zap.String("bot_id", profile.ID),
				zap.Error(err))
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	respondJSON(w, http.StatusOK, summaries)
}

// Stats обрабатывает GET /api/v1/bots/{botId}/stats
func (h *BotsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	botID := mux.Vars(r)["botId"]
	if _, ok := h.engines[botID]; !ok {
		respondError(w, http.StatusNotFound, "bot not found")
		return
	}
	stats, err := h.stats.GetByBotID(botID)
	if err != nil {
		if errors.Is(err, repository.ErrStatsNotFound) {
			respondError(w, http.StatusNotFound, "stats not found")
			return
		}
		h.log.Error("не удалось получить статистику бота",
			zap.String("bot_id", botID),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Series обрабатывает GET /api/v1/bots/{botId}/series?status=&limit=
func (h *BotsHandler) Series(w http.ResponseWriter, r *http.Request) {
	botID := mux.Vars(r)["botId"]
	if _, ok := h.engines[botID]; !ok {
		respondError(w, http.StatusNotFound, "bot not found")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	var (
		list []*models.TradeSeries
		err  error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses, parseErr := parseStatuses(raw)
		if parseErr != nil {
			respondError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		list, err = h.series.FindByStatus(botID, statuses...)
		if err == nil && len(list) > limit {
			list = list[:limit]
		}
	} else {
		list, err = h.series.ListRecent(botID, limit)
	}
	if err != nil {
		h.log.Error("не удалось получить серии бота",
			zap.String("bot_id", botID),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load series")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// ActiveSeries обрабатывает GET /api/v1/bots/{botId}/series/active.
// Читает состояние из памяти движка, а не из базы: в памяти оно всегда свежее.
func (h *BotsHandler) ActiveSeries(w http.ResponseWriter, r *http.Request) {
	botID := mux.Vars(r)["botId"]
	engine, ok := h.engines[botID]
	if !ok {
		respondError(w, http.StatusNotFound, "bot not found")
		return
	}
	respondJSON(w, http.StatusOK, engine.ActiveSeries())
}

func parseStatuses(raw string) ([]models.SeriesStatus, error) {
	parts := strings.Split(raw, ",")
	statuses := make([]models.SeriesStatus, 0, len(parts))
	for _, p := range parts {
		status := models.SeriesStatus(strings.TrimSpace(p))
		switch status {
		case models.SeriesActive, models.SeriesWon, models.SeriesLost,
			models.SeriesCancelled, models.SeriesCooldown:
			statuses = append(statuses, status)
		default:
			return nil, errors.New("unknown status: " + string(status))
		}
	}
	return statuses, nil
}
