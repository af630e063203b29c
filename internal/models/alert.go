package models

import "time"

// AlertKind classifies derived alerts.
type AlertKind string

const (
	AlertTimeWait  AlertKind = "time_wait"
	AlertProblem   AlertKind = "problem"
	AlertTimeLimit AlertKind = "time_limit"
)

// Alert is derived from delivery state on each evaluation tick; it is never stored with the delivery.
type Alert struct {
	ID             string    `json:"id"`
	Kind           AlertKind `json:"kind"`
	RelatedRecords []string  `json:"related_records"`
	Message        string    `json:"message"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// NotificationLedger is the per-user state carried between evaluations.
type NotificationLedger struct {
	Dismissed        map[string]bool `json:"dismissed"`
	LastProblemKey   string          `json:"last_problem_key,omitempty"`
	LastTimeLimitKey string          `json:"last_time_limit_key,omitempty"`
}

// IsDismissed reports whether the alert id was dismissed.
func (l NotificationLedger) IsDismissed(id string) bool {
	return l.Dismissed[id]
}

// Clone returns a deep copy so evaluations never mutate their input.
func (l NotificationLedger) Clone() NotificationLedger {
	out := l
	out.Dismissed = make(map[string]bool, len(l.Dismissed))
	for k, v := range l.Dismissed {
		out.Dismissed[k] = v
	}
	return out
}

// AlertFeed is what a user sees: the passive list plus the single interruptive alert of the last tick.
type AlertFeed struct {
	Alerts      []Alert    `json:"alerts"`
	Toast       *Alert     `json:"toast,omitempty"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`
}

// SupportRequest is the outcome of a support shortcut.
type SupportRequest struct {
	DeliveryID    string    `json:"delivery_id"`
	Message       string    `json:"message"`
	WhatsAppURL   string    `json:"whatsapp_url"`
	CooldownUntil time.Time `json:"cooldown_until"`
}

// SupportAvailability reports whether the support shortcut can be used for a record.
type SupportAvailability struct {
	DeliveryID    string     `json:"delivery_id"`
	Available     bool       `json:"available"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}
