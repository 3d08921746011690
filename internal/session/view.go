package session

import (
	"sync"

	"github.com/crestbank/notifyd/internal/store"
)

// storeView is an in-memory copy of the store's two persisted records,
// loaded lazily and dropped when a change event arrives. Derived-status
// and override reads hit this copy instead of deserializing bbolt
// records on every call, and a write from any session becomes visible
// through the store's event stream.
type storeView struct {
	store *store.Store

	mu          sync.RWMutex
	activeMap   map[string]string
	activeOK    bool
	overrides   map[string]store.Override
	overridesOK bool
}

func newStoreView(st *store.Store) *storeView {
	return &storeView{store: st}
}

// ActiveMap returns the cached selection, reloading it after an
// invalidation. Callers must not mutate the returned map.
func (v *storeView) ActiveMap() map[string]string {
	v.mu.RLock()
	if v.activeOK {
		m := v.activeMap
		v.mu.RUnlock()
		return m
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.activeOK {
		v.activeMap = v.store.ReadActiveMap()
		v.activeOK = true
	}
	return v.activeMap
}

// Overrides returns the cached override records, reloading them after
// an invalidation. Callers must not mutate the returned map.
func (v *storeView) Overrides() map[string]store.Override {
	v.mu.RLock()
	if v.overridesOK {
		m := v.overrides
		v.mu.RUnlock()
		return m
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.overridesOK {
		v.overrides = v.store.ReadOverrides()
		v.overridesOK = true
	}
	return v.overrides
}

// invalidate drops the cached copy of the changed record; the next read
// reloads it from the store
func (v *storeView) invalidate(kind store.EventKind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch kind {
	case store.EventActiveMap:
		v.activeMap = nil
		v.activeOK = false
	case store.EventOverrides:
		v.overrides = nil
		v.overridesOK = false
	}
}
