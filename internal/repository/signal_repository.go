package repository

import (
	"database/sql"
	"time"

	"updown/internal/models"
)

// SignalRepository - журнал обнаруженных сигналов (таблица signal_log)
//
// Журнал выполняет две роли: дедупликация (один сигнал на пару
// рынок+тип, переживающая рестарт детектора) и история для дашборда.
type SignalRepository struct {
	db *sql.DB
}

// NewSignalRepository создает новый экземпляр репозитория
func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Append записывает сигнал в журнал
func (r *SignalRepository) Append(entry *models.SignalLogEntry) error {
	query := `
		INSERT INTO signal_log (asset, color, market_slug, type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		entry.Asset,
		entry.Color,
		entry.MarketSlug,
		entry.Type,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

// Exists проверяет, был ли сигнал этого типа уже зафиксирован
// на данном рынке
func (r *SignalRepository) Exists(marketSlug string, signalType models.SignalType) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM signal_log WHERE market_slug = $1 AND type = $2)`

	var exists bool
	err := r.db.QueryRow(query, marketSlug, signalType).Scan(&exists)
	return exists, err
}

// ListRecent возвращает последние сигналы для дашборда
func (r *SignalRepository) ListRecent(limit int) ([]*models.SignalLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, asset, color, market_slug, type, created_at
		FROM signal_log
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SignalLogEntry
	for rows.Next() {
		entry := &models.SignalLogEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Asset,
			&entry.Color,
			&entry.MarketSlug,
			&entry.Type,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
