package repository

import (
	"database/sql"
	"fmt"
)

// migrations.go - схема базы данных
//
// Схема создаётся идемпотентно при старте процесса. Вложенные
// коллекции серий (позиции, события, валидация) лежат в JSONB:
// записи читаются и пишутся целиком владеющим движком, выборки
// по их содержимому не нужны.

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS trade_series (
		id UUID PRIMARY KEY,
		bot_id VARCHAR(50) NOT NULL,
		asset VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		signal_type VARCHAR(20) NOT NULL,
		signal_color VARCHAR(10) NOT NULL,
		bet_color VARCHAR(10) NOT NULL,
		signal_market_slug VARCHAR(100) NOT NULL,
		current_step INT NOT NULL DEFAULT 1,
		current_market_slug VARCHAR(100) NOT NULL DEFAULT '',
		market_state VARCHAR(20) NOT NULL DEFAULT 'waiting',
		next_step_bought BOOLEAN NOT NULL DEFAULT false,
		next_market_slug VARCHAR(100) NOT NULL DEFAULT '',
		positions JSONB NOT NULL DEFAULT '[]',
		events JSONB NOT NULL DEFAULT '[]',
		total_invested DECIMAL(20, 8) NOT NULL DEFAULT 0,
		total_commission DECIMAL(20, 8) NOT NULL DEFAULT 0,
		total_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
		hedge_losses DECIMAL(20, 8) NOT NULL DEFAULT 0,
		validation JSONB,
		hedge_validation JSONB,
		ended_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_series_bot_status ON trade_series (bot_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_series_bot_asset ON trade_series (bot_id, asset)`,

	`CREATE TABLE IF NOT EXISTS trading_stats (
		bot_id VARCHAR(50) PRIMARY KEY,
		initial_deposit DECIMAL(20, 8) NOT NULL,
		current_balance DECIMAL(20, 8) NOT NULL,
		total_trades INT NOT NULL DEFAULT 0,
		won_trades INT NOT NULL DEFAULT 0,
		lost_trades INT NOT NULL DEFAULT 0,
		cancelled_trades INT NOT NULL DEFAULT 0,
		total_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
		total_commission DECIMAL(20, 8) NOT NULL DEFAULT 0,
		max_win_streak INT NOT NULL DEFAULT 0,
		max_loss_streak INT NOT NULL DEFAULT 0,
		current_streak INT NOT NULL DEFAULT 0,
		wins_by_step JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS signal_log (
		id SERIAL PRIMARY KEY,
		asset VARCHAR(20) NOT NULL,
		color VARCHAR(10) NOT NULL,
		market_slug VARCHAR(100) NOT NULL,
		type VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_signal_log_market_type ON signal_log (market_slug, type)`,

	`CREATE TABLE IF NOT EXISTS subscribers (
		chat_id BIGINT PRIMARY KEY,
		username VARCHAR(100) NOT NULL DEFAULT '',
		subscribed BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate приводит схему базы к актуальному виду
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
