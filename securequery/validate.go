package securequery

import (
	"fmt"

	"github.com/tiagossm/Compia20251207-sub001/tenant"
)

// Validation is the verdict on a client-supplied organization id.
type Validation struct {
	Valid bool
	// Reason describes a rejection for the audit trail.
	Reason string
}

// ValidateOrganization checks an organization id taken from a request
// body or query. An absent id is valid: the caller's scope applies.
// Callers must reject invalid ids; substituting an allowed id hides the
// attempt.
func ValidateOrganization(tc tenant.Context, requested *int64) Validation {
	if requested == nil || tc.IsSystemAdmin() {
		return Validation{Valid: true}
	}
	if tc.Allows(*requested) {
		return Validation{Valid: true}
	}
	if tc.IsUnassigned() {
		return Validation{Reason: fmt.Sprintf(
			"user %s has no organization and requested organization %d", tc.UserID(), *requested)}
	}
	return Validation{Reason: fmt.Sprintf(
		"user %s requested organization %d outside allowed set %v", tc.UserID(), *requested, tc.OrganizationIDs())}
}
