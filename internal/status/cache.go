package status

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/crestbank/notifyd/internal/catalog"
	"github.com/crestbank/notifyd/internal/gateway"
	"github.com/crestbank/notifyd/internal/metrics"
)

// Fetcher fetches a group's remote activation flags
type Fetcher interface {
	FetchByFilters(ctx context.Context, channel, category string) ([]gateway.TemplateFlag, error)
}

// Cache holds remote status snapshots keyed by group. Starting a
// refresh for a group cancels any refresh still in flight for it:
// the last request started does not always finish last, so a
// superseded response must never overwrite a newer one.
type Cache struct {
	fetcher Fetcher
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	snaps    map[string]*Snapshot
	inflight map[string]*refresh
}

type refresh struct {
	cancel context.CancelFunc
}

// NewCache creates a snapshot cache
func NewCache(fetcher Fetcher, m *metrics.Metrics, logger *slog.Logger) *Cache {
	return &Cache{
		fetcher:  fetcher,
		logger:   logger,
		metrics:  m,
		snaps:    make(map[string]*Snapshot),
		inflight: make(map[string]*refresh),
	}
}

// Get returns the current snapshot for a group, or nil when the group
// has never been fetched
func (c *Cache) Get(groupID string) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snaps[groupID]
}

// Refresh fetches a group's remote flags and replaces its snapshot. A
// previous in-flight refresh for the same group is cancelled; a
// cancelled refresh returns the context error and leaves the cache
// untouched.
func (c *Cache) Refresh(ctx context.Context, group catalog.Group) (*Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	r := &refresh{cancel: cancel}

	c.mu.Lock()
	if prev, ok := c.inflight[group.ID]; ok {
		prev.cancel()
	}
	c.inflight[group.ID] = r
	c.mu.Unlock()
	defer cancel()

	flags, err := c.fetcher.FetchByFilters(ctx, string(group.Channel), group.Name)

	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer refresh may have superseded this one while the fetch ran
	current := c.inflight[group.ID] == r
	if current {
		delete(c.inflight, group.ID)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Cancellation is silent: the user navigated away.
			c.count("cancelled")
			return nil, err
		}
		c.count("error")
		return nil, err
	}
	if !current {
		c.count("superseded")
		return nil, context.Canceled
	}

	snap := &Snapshot{
		GroupID:   group.ID,
		Active:    make(map[string]bool, len(flags)),
		FetchedAt: time.Now(),
	}
	for _, f := range flags {
		snap.Active[catalog.NormalizeName(f.Name)] = bool(f.Active)
	}
	c.snaps[group.ID] = snap
	c.count("ok")

	c.logger.Debug("refreshed remote status snapshot",
		"group", group.ID,
		"templates", len(snap.Active),
	)
	return snap, nil
}

// Prime merges a single entry into a group's snapshot without a fetch.
// Used for optimistic updates after a successful create, so the new
// template shows up with a status before the next full refresh.
func (c *Cache) Prime(groupID, name string, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.snaps[groupID]
	if snap == nil {
		snap = &Snapshot{GroupID: groupID, Active: make(map[string]bool)}
		c.snaps[groupID] = snap
	}
	snap.Active[catalog.NormalizeName(name)] = active
}

// Invalidate drops a group's snapshot, forcing the next read to fall
// back to local signals until a refresh completes
func (c *Cache) Invalidate(groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snaps, groupID)
}

func (c *Cache) count(outcome string) {
	if c.metrics != nil {
		c.metrics.SnapshotRefreshTotal.WithLabelValues(outcome).Inc()
	}
}
