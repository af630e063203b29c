package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/delivery-ops-api/internal/models"
)

func TestAuthorizationPredicates(t *testing.T) {
	checkin := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	problem := "Closed gate"

	open := openRecord("r1", "A@Example.com", checkin)
	closed := openRecord("r2", driverA.Email, checkin)
	closed.Status = models.DeliveryFinalized
	closedWithProblem := openRecord("r3", driverA.Email, checkin)
	closedWithProblem.Status = models.DeliveryReturned
	closedWithProblem.ProblemType = &problem

	cases := []struct {
		name       string
		identity   models.Identity
		record     *models.DeliveryRecord
		canEdit    bool
		canDelete  bool
		canComment bool
	}{
		{"owner on open record", driverA, open, true, false, true},
		{"owner after close", driverA, closed, false, false, true},
		{"owner with open problem", driverA, closedWithProblem, true, false, true},
		{"other driver", driverB, open, false, false, false},
		{"supervisor", supervisor, closed, true, true, true},
		{"collaborator", models.Identity{Email: "c@example.com", Role: models.RoleCollaborator}, closed, true, true, true},
		{"nil record", supervisor, nil, false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.canEdit, CanEdit(tc.identity, tc.record))
			assert.Equal(t, tc.canDelete, CanDelete(tc.identity, tc.record))
			assert.Equal(t, tc.canComment, CanComment(tc.identity, tc.record))
		})
	}

	assert.False(t, IsElevated(driverA))
	assert.True(t, IsElevated(models.Identity{Role: models.RoleAdmin}))
}

func TestPermissionsCanMonitor(t *testing.T) {
	checkin := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	problem := "Flat tyre"
	record := openRecord("r1", driverA.Email, checkin)
	record.ProblemType = &problem

	assert.True(t, Permissions(supervisor, record).CanMonitor)
	assert.False(t, Permissions(driverA, record).CanMonitor)

	record.BeingMonitored = true
	assert.False(t, Permissions(supervisor, record).CanMonitor)
}
