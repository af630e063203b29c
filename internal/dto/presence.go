package dto

import "time"

// UpsertLocationRequest reports the caller's current position.
type UpsertLocationRequest struct {
	Latitude   *float64   `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64   `json:"longitude" validate:"required,gte=-180,lte=180"`
	UserName   string     `json:"user_name" validate:"max=120"`
	CapturedAt *time.Time `json:"captured_at"`
}
