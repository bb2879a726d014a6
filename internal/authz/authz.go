// Package authz computes an actor's effective permission level on a zone.
//
// Checks are zone-local: holding Owner on one zone confers nothing on
// another. The global admin role is the only cross-zone elevation.
package authz

import "github.com/org/dusseldorf/pkg/models"

// Level resolves the actor's effective permission on the zone.
//
// Resolution order: the global admin role short-circuits to Admin;
// otherwise the result is the maximum of the actor's explicit authz
// grant (if any) and Owner when the zone's owner is the actor or the
// shared default owner. No candidate yields NoPermission.
func Level(actor *models.Actor, zone *models.Zone) models.Permission {
	if actor == nil || zone == nil {
		return models.NoPermission
	}
	if actor.IsAdmin() {
		return models.Admin
	}

	level := models.NoPermission
	for _, entry := range zone.Authz {
		if entry.Alias == actor.Username && entry.Level > level {
			level = entry.Level
		}
	}
	if zone.Owner == actor.Username || zone.Owner == models.SharedOwner {
		if models.Owner > level {
			level = models.Owner
		}
	}
	return level
}

// HasAtLeast reports whether the actor's effective level on the zone
// meets or exceeds required.
func HasAtLeast(actor *models.Actor, zone *models.Zone, required models.Permission) bool {
	return Level(actor, zone) >= required
}
