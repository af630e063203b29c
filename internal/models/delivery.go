package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// DeliveryStatus enumerates lifecycle states of a delivery.
type DeliveryStatus string

const (
	DeliveryInProgress DeliveryStatus = "in_progress"
	DeliveryFinalized  DeliveryStatus = "finalized"
	DeliveryReturned   DeliveryStatus = "returned"
)

// MaxCommentLength bounds a comment body, counted in characters.
const MaxCommentLength = 500

// DeliveryRecord is one drop-off job performed by a driver at a client site.
type DeliveryRecord struct {
	ID              string         `db:"id" json:"id"`
	ClientName      string         `db:"client_name" json:"client_name"`
	DriverName      string         `db:"driver_name" json:"driver_name"`
	OwnerEmail      string         `db:"owner_email" json:"owner_email"`
	Status          DeliveryStatus `db:"status" json:"status"`
	ProblemType     *string        `db:"problem_type" json:"problem_type,omitempty"`
	ProblemNote     *string        `db:"problem_note" json:"problem_note,omitempty"`
	BeingMonitored  bool           `db:"being_monitored" json:"being_monitored"`
	CheckinTime     *time.Time     `db:"checkin_time" json:"checkin_time,omitempty"`
	CheckoutTime    *time.Time     `db:"checkout_time" json:"checkout_time,omitempty"`
	DurationMinutes *int           `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Attachments     pq.StringArray `db:"attachments" json:"attachments"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
	Comments        []Comment      `db:"-" json:"comments"`
}

// HasOpenProblem reports whether a problem tag is set.
func (r *DeliveryRecord) HasOpenProblem() bool {
	return r.ProblemType != nil && strings.TrimSpace(*r.ProblemType) != ""
}

// ProblemLabel returns the problem tag or an empty string.
func (r *DeliveryRecord) ProblemLabel() string {
	if r.ProblemType == nil {
		return ""
	}
	return *r.ProblemType
}

// IsOwnedBy compares the owner email case-insensitively.
func (r *DeliveryRecord) IsOwnedBy(email string) bool {
	owner := NormalizeEmail(r.OwnerEmail)
	return owner != "" && owner == NormalizeEmail(email)
}

// Comment is an append-only note on a delivery.
type Comment struct {
	ID          string    `db:"id" json:"id"`
	DeliveryID  string    `db:"delivery_id" json:"delivery_id"`
	AuthorEmail string    `db:"author_email" json:"author_email"`
	AuthorName  string    `db:"author_name" json:"author_name"`
	Text        string    `db:"body" json:"text"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DeliveryFilter narrows delivery listings.
type DeliveryFilter struct {
	Status     *DeliveryStatus
	OwnerEmail string
	HasProblem *bool
	From       *time.Time
	To         *time.Time
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// DeliveryPermissions tells the caller which actions are available on a record.
type DeliveryPermissions struct {
	CanEdit    bool `json:"can_edit"`
	CanDelete  bool `json:"can_delete"`
	CanComment bool `json:"can_comment"`
	CanMonitor bool `json:"can_monitor"`
}

// DeliveryView wraps a record with the caller's permissions.
type DeliveryView struct {
	*DeliveryRecord
	Permissions DeliveryPermissions `json:"permissions"`
}
