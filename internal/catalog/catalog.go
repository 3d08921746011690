package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Catalog is the in-memory registry of template groups and definitions.
// It is seeded with the compiled-in set and grows append-only at runtime:
// groups and definitions are never removed in-session, and definition
// content is mutated only through the narrow setters below.
type Catalog struct {
	mu     sync.RWMutex
	groups []Group
	defs   []Definition
	byID   map[string]int // definition id -> index in defs
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// Groups returns the groups for a channel, or all groups when channel is
// empty, in registration order
func (c *Catalog) Groups(channel Channel) []Group {
	c.mu.RLock()
	defer c.mu.RUnlock()

	groups := make([]Group, 0, len(c.groups))
	for _, g := range c.groups {
		if channel != "" && g.Channel != channel {
			continue
		}
		groups = append(groups, g)
	}
	return groups
}

// GroupByID returns a group by id. The second return is false when the
// group is unknown; lookups never fail harder than that.
func (c *Catalog) GroupByID(id string) (Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, g := range c.groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Definitions returns copies of the definitions belonging to a group, in
// registration order. Unknown groups yield an empty slice.
func (c *Catalog) Definitions(groupID string) []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var defs []Definition
	for _, d := range c.defs {
		if d.GroupID == groupID {
			defs = append(defs, copyDefinition(d))
		}
	}
	return defs
}

// FindDefinition returns a copy of the definition with the given id, or
// false when unknown
func (c *Catalog) FindDefinition(id string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return copyDefinition(c.defs[i]), true
}

// AddGroup registers a new group. The (channel, name) pair must be
// unique case-insensitively; an empty id is assigned one.
func (c *Catalog) AddGroup(g Group) (Group, error) {
	if g.Name == "" {
		return Group{}, fmt.Errorf("group name is required")
	}
	if _, err := ParseChannel(string(g.Channel)); err != nil {
		return Group{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	name := NormalizeName(g.Name)
	for _, existing := range c.groups {
		if existing.Channel == g.Channel && NormalizeName(existing.Name) == name {
			return Group{}, fmt.Errorf("group %q already exists on channel %s", g.Name, g.Channel)
		}
	}

	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	c.groups = append(c.groups, g)
	return g, nil
}

// AddDefinition registers a new definition. The id must be unique and
// the owning group must exist; ChannelGroup is filled from the group.
func (c *Catalog) AddDefinition(d Definition) (Definition, error) {
	if d.ID == "" {
		return Definition{}, fmt.Errorf("definition id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[d.ID]; exists {
		return Definition{}, fmt.Errorf("template %q already exists", d.ID)
	}

	var group *Group
	for i := range c.groups {
		if c.groups[i].ID == d.GroupID {
			group = &c.groups[i]
			break
		}
	}
	if group == nil {
		return Definition{}, fmt.Errorf("unknown group %q", d.GroupID)
	}

	d.ChannelGroup = group.Channel
	if d.Key == "" {
		d.Key = d.ID
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}

	c.byID[d.ID] = len(c.defs)
	c.defs = append(c.defs, copyDefinition(d))
	return d, nil
}

// SetStatus updates a definition's compiled status and touches its
// UpdatedAt. Returns false when the definition is unknown.
func (c *Catalog) SetStatus(id string, status Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.byID[id]
	if !ok {
		return false
	}
	c.defs[i].Status = status
	c.defs[i].UpdatedAt = time.Now()
	return true
}

// MergeBody merges locale texts into a definition's body. Locales absent
// from the argument are preserved.
func (c *Catalog) MergeBody(id string, body map[string]string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.byID[id]
	if !ok {
		return false
	}
	if c.defs[i].Body == nil {
		c.defs[i].Body = make(map[string]string, len(body))
	}
	for locale, text := range body {
		c.defs[i].Body[locale] = text
	}
	c.defs[i].UpdatedAt = time.Now()
	return true
}

// DefaultActiveMap computes the catalog-wide fallback active selection:
// for each group, the first registered definition whose compiled status
// is active
func (c *Catalog) DefaultActiveMap() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defaults := make(map[string]string)
	for _, d := range c.defs {
		if d.Status != StatusActive {
			continue
		}
		if _, taken := defaults[d.GroupID]; taken {
			continue
		}
		defaults[d.GroupID] = d.ID
	}
	return defaults
}

func copyDefinition(d Definition) Definition {
	if d.Body != nil {
		body := make(map[string]string, len(d.Body))
		for locale, text := range d.Body {
			body[locale] = text
		}
		d.Body = body
	}
	if d.Variables != nil {
		d.Variables = append([]Variable(nil), d.Variables...)
	}
	return d
}
