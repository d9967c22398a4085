package bot

import (
	"testing"

	"updown/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.SeriesStatus
		want     bool
	}{
		{models.SeriesActive, models.SeriesWon, true},
		{models.SeriesActive, models.SeriesLost, true},
		{models.SeriesActive, models.SeriesCancelled, true},
		{models.SeriesActive, models.SeriesCooldown, false}, // карантин - отдельная запись
		{models.SeriesWon, models.SeriesActive, false},
		{models.SeriesLost, models.SeriesActive, false},
		{models.SeriesCancelled, models.SeriesWon, false},
		{models.SeriesCooldown, models.SeriesActive, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanMarketTransition(t *testing.T) {
	tests := []struct {
		from, to models.MarketState
		want     bool
	}{
		{models.MarketWaiting, models.MarketActive, true},
		{models.MarketActive, models.MarketClosed, true},
		{models.MarketClosed, models.MarketWaiting, true}, // следующий шаг
		{models.MarketWaiting, models.MarketClosed, false},
		{models.MarketClosed, models.MarketActive, false},
		{models.MarketActive, models.MarketWaiting, false},
	}
	for _, tt := range tests {
		if got := CanMarketTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanMarketTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStateInfo_CoversAllStatuses(t *testing.T) {
	statuses := []models.SeriesStatus{
		models.SeriesActive, models.SeriesWon, models.SeriesLost,
		models.SeriesCancelled, models.SeriesCooldown,
	}
	seen := make(map[string]bool)
	for _, s := range statuses {
		info := StateInfo(s)
		if info == "" || info == StateInfo("garbage") {
			t.Errorf("StateInfo(%s) не имеет собственного описания", s)
		}
		if seen[info] {
			t.Errorf("описание %q повторяется", info)
		}
		seen[info] = true
	}
}
