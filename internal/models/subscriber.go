package models

import "time"

// Subscriber представляет получателя уведомлений в Telegram
type Subscriber struct {
	ChatID     int64     `json:"chat_id" db:"chat_id"`
	Username   string    `json:"username" db:"username"`
	Subscribed bool      `json:"subscribed" db:"subscribed"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
