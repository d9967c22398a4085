package repository

import (
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"updown/internal/models"
)

// ============================================================
// SeriesRepository Tests
// ============================================================

var seriesRows = []string{
	"id", "bot_id", "asset", "status", "signal_type", "signal_color", "bet_color", "signal_market_slug",
	"current_step", "current_market_slug", "market_state", "next_step_bought", "next_market_slug",
	"positions", "events", "total_invested", "total_commission", "total_pnl", "hedge_losses",
	"validation", "hedge_validation", "ended_at", "created_at", "updated_at",
}

func sampleSeriesRow(id, botID, asset string, status models.SeriesStatus) []driver.Value {
	now := time.Now().UTC()
	return []driver.Value{
		id, botID, asset, string(status), "2candles", "green", "red", "eth-updown-15m-1700000100",
		1, "eth-updown-15m-1700001000", "waiting", false, "",
		[]byte(`[{"step":1,"market_slug":"eth-updown-15m-1700001000","color":"red","amount":12.5,"status":"active"}]`),
		[]byte(`[{"type":"buy","step":1}]`),
		12.5, 0.19, 0.0, 0.0,
		nil, nil, nil, now, now,
	}
}

func TestSeriesRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSeriesRepository(db)

	series := &models.TradeSeries{
		ID:               "9f4f1f7a-0000-0000-0000-000000000001",
		BotID:            "bot2",
		Asset:            "eth",
		Status:           models.SeriesActive,
		SignalType:       models.SignalTwoCandles,
		SignalColor:      models.ColorGreen,
		BetColor:         models.ColorRed,
		SignalMarketSlug: "eth-updown-15m-1700000100",
		CurrentStep:      1,
		MarketState:      models.MarketWaiting,
		Positions:        models.PositionList{{Step: 1, Status: models.PositionActive}},
		Events:           models.EventList{{Type: models.EventBuy, Step: 1}},
	}

	mock.ExpectExec(`INSERT INTO trade_series`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(series); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if series.CreatedAt.IsZero() || series.UpdatedAt.IsZero() {
		t.Error("Save должен проставить метки времени")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("невыполненные ожидания: %v", err)
	}
}

func TestSeriesRepository_FindOpenByAsset(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSeriesRepository(db)

	rows := sqlmock.NewRows(seriesRows).
		AddRow(sampleSeriesRow("9f4f1f7a-0000-0000-0000-000000000001", "bot2", "eth", models.SeriesActive)...)

	mock.ExpectQuery(`SELECT (.+) FROM trade_series`).
		WithArgs("bot2", "eth", sqlmock.AnyArg()).
		WillReturnRows(rows)

	series, err := repo.FindOpenByAsset("bot2", "eth")
	if err != nil {
		t.Fatalf("ошибка поиска: %v", err)
	}
	if series.Status != models.SeriesActive {
		t.Errorf("статус = %s", series.Status)
	}
	if len(series.Positions) != 1 || series.Positions[0].Amount != 12.5 {
		t.Errorf("позиции из JSONB: %+v", series.Positions)
	}
	if len(series.Events) != 1 || series.Events[0].Type != models.EventBuy {
		t.Errorf("события из JSONB: %+v", series.Events)
	}
	if series.Validation != nil {
		t.Error("validation должна быть nil для NULL-колонки")
	}
}

func TestSeriesRepository_FindOpenByAsset_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSeriesRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM trade_series`).
		WithArgs("bot2", "eth", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(seriesRows))

	_, err = repo.FindOpenByAsset("bot2", "eth")
	if !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("ожидалась ErrSeriesNotFound, получено %v", err)
	}
}

func TestSeriesRepository_FindOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSeriesRepository(db)

	rows := sqlmock.NewRows(seriesRows).
		AddRow(sampleSeriesRow("9f4f1f7a-0000-0000-0000-000000000001", "bot2", "eth", models.SeriesActive)...).
		AddRow(sampleSeriesRow("9f4f1f7a-0000-0000-0000-000000000002", "bot2", "btc", models.SeriesCooldown)...)

	mock.ExpectQuery(`SELECT (.+) FROM trade_series`).
		WithArgs("bot2", sqlmock.AnyArg()).
		WillReturnRows(rows)

	list, err := repo.FindOpen("bot2")
	if err != nil {
		t.Fatalf("ошибка поиска: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("найдено %d серий, ожидалось 2", len(list))
	}
	if list[1].Status != models.SeriesCooldown {
		t.Errorf("вторая серия: статус %s", list[1].Status)
	}
}

func TestSeriesRepository_ValidationRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSeriesRepository(db)

	row := sampleSeriesRow("9f4f1f7a-0000-0000-0000-000000000003", "bot3", "eth", models.SeriesActive)
	row[19] = []byte(`{"state":"validating","market_slug":"eth-updown-15m-1700000100","start_price":0.42,"samples":[{"price":0.40,"matching":true}]}`)

	mock.ExpectQuery(`SELECT (.+) FROM trade_series WHERE id`).
		WithArgs("9f4f1f7a-0000-0000-0000-000000000003").
		WillReturnRows(sqlmock.NewRows(seriesRows).AddRow(row...))

	series, err := repo.GetByID("9f4f1f7a-0000-0000-0000-000000000003")
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if series.Validation == nil {
		t.Fatal("validation не должна быть nil")
	}
	if series.Validation.State != models.ValidationValidating {
		t.Errorf("состояние валидации = %s", series.Validation.State)
	}
	if len(series.Validation.Samples) != 1 || !series.Validation.Samples[0].Matching {
		t.Errorf("замеры валидации: %+v", series.Validation.Samples)
	}
}
