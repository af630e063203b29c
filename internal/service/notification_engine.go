package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/delivery-ops-api/internal/models"
)

// AlertRules parameterise an evaluation.
type AlertRules struct {
	TimeWaitThreshold time.Duration
	TimeLimitHour     int
	Location          *time.Location
}

// DefaultAlertRules returns the production thresholds.
func DefaultAlertRules() AlertRules {
	return AlertRules{TimeWaitThreshold: time.Hour, TimeLimitHour: 17, Location: time.Local}
}

// Evaluation is the outcome of one tick for one user.
type Evaluation struct {
	// Alerts fired on this tick, in evaluation order.
	Alerts []models.Alert
	// Active is every alert whose condition holds and that was not dismissed, in evaluation
	// order. The service promotes at most one of them to a toast per tick.
	Active []models.Alert
}

// TimeWaitAlertID identifies the long-wait alert of one delivery.
func TimeWaitAlertID(recordID string) string { return "time_wait:" + recordID }

// ProblemGroupKey is the hour bucket used to dedup problem summaries.
func ProblemGroupKey(local time.Time) string {
	return fmt.Sprintf("%s_hour_%d", local.Format("2006-01-02"), local.Hour())
}

// ProblemGroupAlertID identifies the problem summary of one hour bucket.
func ProblemGroupAlertID(local time.Time) string { return "problem_group:" + ProblemGroupKey(local) }

// TimeLimitAlertID identifies the end-of-day reminder of one hour.
func TimeLimitAlertID(local time.Time) string {
	return fmt.Sprintf("time_limit:%s:%d", local.Format("2006-01-02"), local.Hour())
}

// Evaluate derives alerts from the open deliveries. It never mutates its inputs and returns
// the ledger to persist for the next tick.
func Evaluate(records []models.DeliveryRecord, ledger models.NotificationLedger, now time.Time, rules AlertRules) (Evaluation, models.NotificationLedger) {
	if rules.TimeWaitThreshold <= 0 {
		rules.TimeWaitThreshold = time.Hour
	}
	loc := rules.Location
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	next := ledger.Clone()

	var eval Evaluation
	fire := func(alert models.Alert) {
		eval.Alerts = append(eval.Alerts, alert)
		eval.Active = append(eval.Active, alert)
	}

	open := make([]models.DeliveryRecord, 0, len(records))
	for _, r := range records {
		if r.Status == models.DeliveryInProgress {
			open = append(open, r)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		a, b := open[i].CheckinTime, open[j].CheckinTime
		switch {
		case a == nil && b == nil:
			return open[i].ID < open[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return open[i].ID < open[j].ID
	})

	var waiting []models.DeliveryRecord
	var problems []models.DeliveryRecord
	for _, r := range open {
		if r.CheckinTime != nil && now.Sub(*r.CheckinTime) >= rules.TimeWaitThreshold {
			waiting = append(waiting, r)
		}
		if r.HasOpenProblem() {
			problems = append(problems, r)
		}
	}

	for _, r := range waiting {
		id := TimeWaitAlertID(r.ID)
		if next.IsDismissed(id) {
			continue
		}
		fire(models.Alert{
			ID:             id,
			Kind:           models.AlertTimeWait,
			RelatedRecords: []string{r.ID},
			Message:        timeWaitMessage(r, now.Sub(*r.CheckinTime)),
			GeneratedAt:    now,
		})
	}

	if len(problems) > 0 {
		key := ProblemGroupKey(local)
		id := ProblemGroupAlertID(local)
		alert := models.Alert{
			ID:             id,
			Kind:           models.AlertProblem,
			RelatedRecords: recordIDs(problems),
			Message:        problemMessage(problems),
			GeneratedAt:    now,
		}
		switch {
		case next.IsDismissed(id):
		case key != next.LastProblemKey:
			next.LastProblemKey = key
			fire(alert)
		default:
			eval.Active = append(eval.Active, alert)
		}
	}

	if len(waiting) > 0 && local.Hour() >= rules.TimeLimitHour {
		id := TimeLimitAlertID(local)
		alert := models.Alert{
			ID:             id,
			Kind:           models.AlertTimeLimit,
			RelatedRecords: recordIDs(waiting),
			Message:        fmt.Sprintf("It is past %02d:00 and %d %s still open", rules.TimeLimitHour, len(waiting), plural(len(waiting), "delivery is", "deliveries are")),
			GeneratedAt:    now,
		}
		switch {
		case next.IsDismissed(id):
		case id != next.LastTimeLimitKey:
			next.LastTimeLimitKey = id
			fire(alert)
		default:
			eval.Active = append(eval.Active, alert)
		}
	}

	return eval, next
}

func timeWaitMessage(r models.DeliveryRecord, elapsed time.Duration) string {
	who := r.ClientName
	if who == "" {
		who = r.ID
	}
	if r.DriverName != "" {
		who = fmt.Sprintf("%s (%s)", who, r.DriverName)
	}
	return fmt.Sprintf("Delivery at %s has been waiting %s since check-in", who, elapsed.Truncate(time.Minute))
}

func problemMessage(records []models.DeliveryRecord) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		name := r.ClientName
		if name == "" {
			name = r.ID
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, r.ProblemLabel()))
	}
	return fmt.Sprintf("%d %s with open problems. %s", len(records), plural(len(records), "delivery", "deliveries"), strings.Join(parts, "; "))
}

func recordIDs(records []models.DeliveryRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func alertIDs(alerts []models.Alert) []string {
	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}
	return ids
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func sameMarkers(a, b models.NotificationLedger) bool {
	return a.LastProblemKey == b.LastProblemKey && a.LastTimeLimitKey == b.LastTimeLimitKey
}
