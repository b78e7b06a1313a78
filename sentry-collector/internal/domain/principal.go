package domain

import "time"

// Principal is an account allowed to push and read data (table principals).
type Principal struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"` // unique, trimmed
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
