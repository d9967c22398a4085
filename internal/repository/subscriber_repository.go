package repository

import (
	"database/sql"
	"time"

	"updown/internal/models"
)

// SubscriberRepository - получатели Telegram-уведомлений
// (таблица subscribers)
type SubscriberRepository struct {
	db *sql.DB
}

// NewSubscriberRepository создает новый экземпляр репозитория
func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// Upsert создает или обновляет подписчика по chat_id
func (r *SubscriberRepository) Upsert(sub *models.Subscriber) error {
	query := `
		INSERT INTO subscribers (chat_id, username, subscribed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (chat_id) DO UPDATE SET
			username = EXCLUDED.username,
			subscribed = EXCLUDED.subscribed,
			updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	_, err := r.db.Exec(query, sub.ChatID, sub.Username, sub.Subscribed, now)
	return err
}

// SetSubscribed переключает подписку чата
func (r *SubscriberRepository) SetSubscribed(chatID int64, subscribed bool) error {
	query := `UPDATE subscribers SET subscribed = $2, updated_at = $3 WHERE chat_id = $1`

	_, err := r.db.Exec(query, chatID, subscribed, time.Now().UTC())
	return err
}

// ListSubscribed возвращает все активные подписки
func (r *SubscriberRepository) ListSubscribed() ([]*models.Subscriber, error) {
	query := `
		SELECT chat_id, username, subscribed, created_at, updated_at
		FROM subscribers
		WHERE subscribed = true
		ORDER BY chat_id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Subscriber
	for rows.Next() {
		sub := &models.Subscriber{}
		err := rows.Scan(&sub.ChatID, &sub.Username, &sub.Subscribed, &sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
