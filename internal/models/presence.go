package models

import "time"

// LocationPing is the latest known position of a user. The store keeps one row per email.
type LocationPing struct {
	UserEmail  string    `db:"user_email" json:"user_email"`
	UserName   string    `db:"user_name" json:"user_name"`
	Latitude   float64   `db:"latitude" json:"latitude"`
	Longitude  float64   `db:"longitude" json:"longitude"`
	IsOnline   bool      `db:"is_online" json:"is_online"`
	LastUpdate time.Time `db:"last_update" json:"last_update"`
}

// PendingLocationEntry is a ping captured while the store was unreachable.
type PendingLocationEntry struct {
	Key        string       `json:"key"`
	Ping       LocationPing `json:"ping"`
	CapturedAt time.Time    `json:"captured_at"`
}
