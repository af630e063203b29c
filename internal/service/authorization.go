package service

import "github.com/noah-isme/delivery-ops-api/internal/models"

// IsElevated reports whether the identity may act on any delivery.
func IsElevated(identity models.Identity) bool {
	for _, role := range models.ElevatedRoles {
		if identity.Role == role {
			return true
		}
	}
	return false
}

// CanEdit reports whether the identity may change the record's fields.
// Owners keep edit rights while the delivery is open or a problem is still flagged.
func CanEdit(identity models.Identity, record *models.DeliveryRecord) bool {
	if record == nil {
		return false
	}
	if IsElevated(identity) {
		return true
	}
	if !record.IsOwnedBy(identity.Email) {
		return false
	}
	return record.Status == models.DeliveryInProgress || record.HasOpenProblem()
}

// CanDelete is reserved for elevated identities.
func CanDelete(identity models.Identity, record *models.DeliveryRecord) bool {
	return record != nil && IsElevated(identity)
}

// CanComment allows elevated identities everywhere and owners on their own records at any status.
func CanComment(identity models.Identity, record *models.DeliveryRecord) bool {
	if record == nil {
		return false
	}
	return IsElevated(identity) || record.IsOwnedBy(identity.Email)
}

// Permissions evaluates every predicate for the record.
func Permissions(identity models.Identity, record *models.DeliveryRecord) models.DeliveryPermissions {
	return models.DeliveryPermissions{
		CanEdit:    CanEdit(identity, record),
		CanDelete:  CanDelete(identity, record),
		CanComment: CanComment(identity, record),
		CanMonitor: IsElevated(identity) && record != nil && record.Status == models.DeliveryInProgress &&
			record.HasOpenProblem() && !record.BeingMonitored,
	}
}
