package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"updown/internal/models"
)

// Ошибки репозитория серий
var (
	ErrSeriesNotFound = errors.New("series not found")
)

// SeriesRepository - работа с таблицей trade_series
type SeriesRepository struct {
	db *sql.DB
}

// NewSeriesRepository создает новый экземпляр репозитория
func NewSeriesRepository(db *sql.DB) *SeriesRepository {
	return &SeriesRepository{db: db}
}

const seriesColumns = `id, bot_id, asset, status, signal_type, signal_color, bet_color, signal_market_slug,
		current_step, current_market_slug, market_state, next_step_bought, next_market_slug,
		positions, events, total_invested, total_commission, total_pnl, hedge_losses,
		validation, hedge_validation, ended_at, created_at, updated_at`

// Save сохраняет серию (insert или update по id).
// Движок владеет сериями целиком, поэтому запись перезаписывается
// без optimistic locking.
func (r *SeriesRepository) Save(series *models.TradeSeries) error {
	query := `
		INSERT INTO trade_series (` + seriesColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step = EXCLUDED.current_step,
			current_market_slug = EXCLUDED.current_market_slug,
			market_state = EXCLUDED.market_state,
			next_step_bought = EXCLUDED.next_step_bought,
			next_market_slug = EXCLUDED.next_market_slug,
			positions = EXCLUDED.positions,
			events = EXCLUDED.events,
			total_invested = EXCLUDED.total_invested,
			total_commission = EXCLUDED.total_commission,
			total_pnl = EXCLUDED.total_pnl,
			hedge_losses = EXCLUDED.hedge_losses,
			validation = EXCLUDED.validation,
			hedge_validation = EXCLUDED.hedge_validation,
			ended_at = EXCLUDED.ended_at,
			updated_at = EXCLUDED.updated_at`

	series.UpdatedAt = time.Now().UTC()
	if series.CreatedAt.IsZero() {
		series.CreatedAt = series.UpdatedAt
	}

	_, err := r.db.Exec(
		query,
		series.ID,
		series.BotID,
		series.Asset,
		series.Status,
		series.SignalType,
		series.SignalColor,
		series.BetColor,
		series.SignalMarketSlug,
		series.CurrentStep,
		series.CurrentMarketSlug,
		series.MarketState,
		series.NextStepBought,
		series.NextMarketSlug,
		series.Positions,
		series.Events,
		series.TotalInvested,
		series.TotalCommission,
		series.TotalPnL,
		series.HedgeLosses,
		series.Validation,
		series.HedgeValidation,
		series.EndedAt,
		series.CreatedAt,
		series.UpdatedAt,
	)
	return err
}

// GetByID возвращает серию по идентификатору
func (r *SeriesRepository) GetByID(id string) (*models.TradeSeries, error) {
	query := `SELECT ` + seriesColumns + ` FROM trade_series WHERE id = $1`
	return r.scanOne(r.db.QueryRow(query, id))
}

// FindByStatus возвращает серии бота с указанными статусами,
// свежие первыми
func (r *SeriesRepository) FindByStatus(botID string, statuses ...models.SeriesStatus) ([]*models.TradeSeries, error) {
	query := `
		SELECT ` + seriesColumns + `
		FROM trade_series
		WHERE bot_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC`

	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}

	rows, err := r.db.Query(query, botID, pq.Array(raw))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// FindOpen возвращает незавершённые серии бота (active и cooldown).
// Используется при старте для восстановления состояния движка.
func (r *SeriesRepository) FindOpen(botID string) ([]*models.TradeSeries, error) {
	return r.FindByStatus(botID, models.SeriesActive, models.SeriesCooldown)
}

// FindOpenByAsset возвращает незавершённую серию по активу или
// ErrSeriesNotFound. Проверка хранилища при приёме сигнала: память
// могла быть потеряна при рестарте.
func (r *SeriesRepository) FindOpenByAsset(botID, asset string) (*models.TradeSeries, error) {
	query := `
		SELECT ` + seriesColumns + `
		FROM trade_series
		WHERE bot_id = $1 AND asset = $2 AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT 1`

	statuses := pq.Array([]string{string(models.SeriesActive), string(models.SeriesCooldown)})
	return r.scanOne(r.db.QueryRow(query, botID, asset, statuses))
}

// ListRecent возвращает последние серии бота для дашборда
func (r *SeriesRepository) ListRecent(botID string, limit int) ([]*models.TradeSeries, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT ` + seriesColumns + `
		FROM trade_series
		WHERE bot_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, botID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// nullValidation оборачивает nullable JSONB-колонку валидации
type nullValidation struct {
	run *models.ValidationRun
}

// Scan реализует sql.Scanner
func (n *nullValidation) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	n.run = &models.ValidationRun{}
	return n.run.Scan(src)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SeriesRepository) scanOne(row rowScanner) (*models.TradeSeries, error) {
	series := &models.TradeSeries{}
	var validation, hedgeValidation nullValidation
	var endedAt sql.NullTime

	err := row.Scan(
		&series.ID,
		&series.BotID,
		&series.Asset,
		&series.Status,
		&series.SignalType,
		&series.SignalColor,
		&series.BetColor,
		&series.SignalMarketSlug,
		&series.CurrentStep,
		&series.CurrentMarketSlug,
		&series.MarketState,
		&series.NextStepBought,
		&series.NextMarketSlug,
		&series.Positions,
		&series.Events,
		&series.TotalInvested,
		&series.TotalCommission,
		&series.TotalPnL,
		&series.HedgeLosses,
		&validation,
		&hedgeValidation,
		&endedAt,
		&series.CreatedAt,
		&series.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, err
	}

	series.Validation = validation.run
	series.HedgeValidation = hedgeValidation.run
	if endedAt.Valid {
		t := endedAt.Time
		series.EndedAt = &t
	}
	return series, nil
}

func (r *SeriesRepository) scanAll(rows *sql.Rows) ([]*models.TradeSeries, error) {
	var out []*models.TradeSeries
	for rows.Next() {
		series, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, rows.Err()
}
