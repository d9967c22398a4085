package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"updown/internal/models"
)

// SignalReader - доступ к журналу сигналов для чтения
type SignalReader interface {
	ListRecent(limit int) ([]*models.SignalLogEntry, error)
}

// SignalsHandler обслуживает /api/v1/signals
type SignalsHandler struct {
	signals SignalReader
	log     *zap.Logger
}

func NewSignalsHandler(signals SignalReader, log *zap.Logger) *SignalsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SignalsHandler{signals: signals, log: log}
}

// List обрабатывает GET /api/v1/signals?limit=
func (h *SignalsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}
	entries, err := h.signals.ListRecent(limit)
	if err != nil {
		h.log.Error("не удалось получить журнал сигналов", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load signals")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
