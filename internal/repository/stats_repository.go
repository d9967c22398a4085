package repository

import (
	"database/sql"
	"errors"
	"time"

	"updown/internal/models"
)

// Ошибки репозитория статистики
var (
	ErrStatsNotFound = errors.New("stats not found")
)

// StatsRepository - работа с таблицей trading_stats (одна запись на бота)
type StatsRepository struct {
	db *sql.DB
}

// NewStatsRepository создает новый экземпляр репозитория
func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

const statsColumns = `bot_id, initial_deposit, current_balance, total_trades, won_trades, lost_trades,
		cancelled_trades, total_pnl, total_commission, max_win_streak, max_loss_streak,
		current_streak, wins_by_step, created_at, updated_at`

// GetOrCreate возвращает статистику бота, создавая запись с
// начальным депозитом при первом обращении. Вставка атомарна:
// при гонке двух процессов выживает одна запись.
func (r *StatsRepository) GetOrCreate(botID string, deposit float64) (*models.TradingStats, error) {
	insert := `
		INSERT INTO trading_stats (` + statsColumns + `)
		VALUES ($1, $2, $2, 0, 0, 0, 0, 0, 0, 0, 0, 0, '{}', $3, $3)
		ON CONFLICT (bot_id) DO NOTHING`

	now := time.Now().UTC()
	if _, err := r.db.Exec(insert, botID, deposit, now); err != nil {
		return nil, err
	}

	return r.GetByBotID(botID)
}

// GetByBotID возвращает статистику бота
func (r *StatsRepository) GetByBotID(botID string) (*models.TradingStats, error) {
	query := `SELECT ` + statsColumns + ` FROM trading_stats WHERE bot_id = $1`

	stats := &models.TradingStats{}
	err := r.db.QueryRow(query, botID).Scan(
		&stats.BotID,
		&stats.InitialDeposit,
		&stats.CurrentBalance,
		&stats.TotalTrades,
		&stats.WonTrades,
		&stats.LostTrades,
		&stats.CancelledTrades,
		&stats.TotalPnL,
		&stats.TotalCommission,
		&stats.MaxWinStreak,
		&stats.MaxLossStreak,
		&stats.CurrentStreak,
		&stats.WinsByStep,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatsNotFound
		}
		return nil, err
	}
	return stats, nil
}

// Save записывает изменённую статистику.
// Баланс проверяется вызывающим кодом до списания, поэтому запись
// с отрицательным балансом сюда не доходит.
func (r *StatsRepository) Save(stats *models.TradingStats) error {
	query := `
		UPDATE trading_stats SET
			current_balance = $2,
			total_trades = $3,
			won_trades = $4,
			lost_trades = $5,
			cancelled_trades = $6,
			total_pnl = $7,
			total_commission = $8,
			max_win_streak = $9,
			max_loss_streak = $10,
			current_streak = $11,
			wins_by_step = $12,
			updated_at = $13
		WHERE bot_id = $1`

	stats.UpdatedAt = time.Now().UTC()

	result, err := r.db.Exec(
		query,
		stats.BotID,
		stats.CurrentBalance,
		stats.TotalTrades,
		stats.WonTrades,
		stats.LostTrades,
		stats.CancelledTrades,
		stats.TotalPnL,
		stats.TotalCommission,
		stats.MaxWinStreak,
		stats.MaxLossStreak,
		stats.CurrentStreak,
		stats.WinsByStep,
		stats.UpdatedAt,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatsNotFound
	}
	return nil
}

// ListAll возвращает статистику всех ботов для дашборда
func (r *StatsRepository) ListAll() ([]*models.TradingStats, error) {
	query := `SELECT ` + statsColumns + ` FROM trading_stats ORDER BY bot_id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TradingStats
	for rows.Next() {
		stats := &models.TradingStats{}
		err := rows.Scan(
			&stats.BotID,
			&stats.InitialDeposit,
			&stats.CurrentBalance,
			&stats.TotalTrades,
			&stats.WonTrades,
			&stats.LostTrades,
			&stats.CancelledTrades,
			&stats.TotalPnL,
			&stats.TotalCommission,
			&stats.MaxWinStreak,
			&stats.MaxLossStreak,
			&stats.CurrentStreak,
			&stats.WinsByStep,
			&stats.CreatedAt,
			&stats.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}
