// Package status reconciles a template's compiled default, the local
// active-map selection, and the remote authoritative snapshot into one
// derived display status.
package status

import (
	"time"

	"github.com/crestbank/notifyd/internal/catalog"
)

// Snapshot is the last fetched remote activation state for one group:
// normalized template name -> active flag. It has no TTL; it refreshes
// whenever the user navigates to the group.
type Snapshot struct {
	GroupID   string
	Active    map[string]bool
	FetchedAt time.Time
}

// Derive computes a template's display status. Priority, first match
// wins:
//
//  1. A compiled draft stays a draft. Drafts are never promoted by
//     remote or local signals.
//  2. A remote snapshot entry for the template's normalized name is
//     authoritative whenever present.
//  3. Otherwise the local active map decides, falling back to the
//     catalog default active map for groups it has no entry for.
//
// The remote service is the eventual source of truth but may not have
// been fetched yet; local and default signals give an instant
// placeholder status until it is.
func Derive(def catalog.Definition, snap *Snapshot, activeMap, defaultActive map[string]string) catalog.Status {
	if def.Status == catalog.StatusDraft {
		return catalog.StatusDraft
	}

	if snap != nil {
		if active, ok := snap.Active[def.NormalizedName()]; ok {
			if active {
				return catalog.StatusActive
			}
			return catalog.StatusInactive
		}
	}

	selected, ok := activeMap[def.GroupID]
	if !ok {
		selected = defaultActive[def.GroupID]
	}
	if selected == def.ID {
		return catalog.StatusActive
	}
	return catalog.StatusInactive
}
