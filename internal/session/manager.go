// Package session orchestrates template editing: loading a template's
// combined view, creating templates, saving content edits, and
// activating templates against the Remote Sync Gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/crestbank/notifyd/internal/catalog"
	"github.com/crestbank/notifyd/internal/gateway"
	"github.com/crestbank/notifyd/internal/metrics"
	"github.com/crestbank/notifyd/internal/status"
	"github.com/crestbank/notifyd/internal/store"
	"github.com/crestbank/notifyd/internal/variables"
)

// ErrTemplateNotFound is returned when a template id is unknown to the
// catalog
var ErrTemplateNotFound = errors.New("template not found")

// ErrGroupNotFound is returned when a group id is unknown to the
// catalog
var ErrGroupNotFound = errors.New("group not found")

// ValidationError is a pre-network input rejection, addressable to a
// single field. Nothing is mutated and no gateway call is made when one
// is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Manager owns the collaborators every template session needs
type Manager struct {
	catalog   *catalog.Catalog
	store     *store.Store
	view      *storeView
	gw        *gateway.Client
	snapshots *status.Cache
	logger    *slog.Logger
	metrics   *metrics.Metrics

	companyID  string
	from       string
	timeout    time.Duration
	stopEvents func()
}

// NewManager creates a session manager. The timeout bounds each
// gateway-backed operation so a hung gateway cannot leave a session in
// Saving or Activating forever.
func NewManager(cat *catalog.Catalog, st *store.Store, gw *gateway.Client, snaps *status.Cache, m *metrics.Metrics, logger *slog.Logger, companyID, from string, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	mgr := &Manager{
		catalog:   cat,
		store:     st,
		view:      newStoreView(st),
		gw:        gw,
		snapshots: snaps,
		logger:    logger,
		metrics:   m,
		companyID: companyID,
		from:      from,
		timeout:   timeout,
	}

	// Store writes from any session invalidate the cached view, so
	// derived-status reads observe them without re-reading bbolt on
	// every call.
	events, unsubscribe := st.Subscribe()
	mgr.stopEvents = unsubscribe
	go func() {
		for ev := range events {
			mgr.view.invalidate(ev.Kind)
		}
	}()

	return mgr
}

// Close detaches the manager from store change events
func (m *Manager) Close() {
	if m.stopEvents != nil {
		m.stopEvents()
	}
}

// CreateTemplateRequest carries the inputs for creating a template. The
// body is a single shared text seeded into every locale; per-locale
// content arrives later through saves.
type CreateTemplateRequest struct {
	GroupID   string
	Name      string
	Body      string
	Subject   string
	CompanyID string
}

// CreateTemplate validates and creates a new template. All validation
// happens before any network call; a gateway failure leaves the
// catalog, the override store, and the snapshot cache untouched.
func (m *Manager) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (catalog.Definition, error) {
	group, ok := m.catalog.GroupByID(req.GroupID)
	if !ok {
		return catalog.Definition{}, ErrGroupNotFound
	}

	name := catalog.NormalizeName(req.Name)
	if name == "" {
		return catalog.Definition{}, &ValidationError{Field: "name", Message: "name is required"}
	}

	id := catalog.Slug(req.Name)
	if _, exists := m.catalog.FindDefinition(id); exists {
		return catalog.Definition{}, &ValidationError{Field: "name", Message: fmt.Sprintf("a template named %q already exists", req.Name)}
	}
	if snap := m.snapshots.Get(group.ID); snap != nil {
		if _, exists := snap.Active[name]; exists {
			return catalog.Definition{}, &ValidationError{Field: "name", Message: fmt.Sprintf("the gateway already has a template named %q in %s", req.Name, group.Name)}
		}
	}

	if err := variables.ValidateCategoryConstraint(group.Name, req.Body); err != nil {
		return catalog.Definition{}, err
	}

	companyID := req.CompanyID
	if companyID == "" {
		companyID = m.companyID
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.gw.Create(ctx, gateway.CreateRequest{
		CompanyID: companyID,
		Channel:   string(group.Channel),
		Category:  group.Name,
		Name:      req.Name,
		Template:  req.Body,
		Active:    false,
		From:      m.from,
		Subject:   req.Subject,
	})
	if err != nil {
		return catalog.Definition{}, err
	}

	body := make(map[string]string, len(catalog.DefaultLocales))
	for _, locale := range catalog.DefaultLocales {
		body[locale] = req.Body
	}

	def := catalog.Definition{
		ID:        id,
		GroupID:   group.ID,
		Transport: transportFor(group.Channel),
		Status:    catalog.StatusInactive,
		Name:      req.Name,
		Subject:   req.Subject,
		Body:      body,
		Variables: declaredVariables(req.Body),
	}
	def, err = m.catalog.AddDefinition(def)
	if err != nil {
		// The gateway accepted the template but the registry refused
		// it. Losing the local record is recoverable: the next
		// by-filters refresh will show it remotely.
		return catalog.Definition{}, fmt.Errorf("failed to register created template: %w", err)
	}

	// Persist through the override store so the template survives a
	// process restart. GroupID marks the record as a created template
	// for RestoreCreated.
	if err := m.store.SaveOverride(id, store.Override{
		Body:      body,
		Name:      req.Name,
		Subject:   req.Subject,
		GroupID:   group.ID,
		UpdatedAt: time.Now(),
	}); err != nil {
		m.logger.Warn("created template not persisted locally", "template", id, "error", err)
	}
	m.view.invalidate(store.EventOverrides)
	m.countStoreWrite("overrides")

	// Optimistic snapshot entry: the new template shows as inactive
	// without waiting for the next refresh.
	m.snapshots.Prime(group.ID, req.Name, false)

	if m.metrics != nil {
		m.metrics.TemplatesCreatedTotal.Inc()
	}
	m.logger.Info("created template", "template", id, "group", group.ID, "channel", group.Channel)
	return def, nil
}

// RestoreCreated rebuilds templates created through the dashboard from
// their persisted override records and registers them in the catalog.
// Called once at startup, after the built-in set is seeded; records
// without a group id belong to built-in templates and are skipped.
// Returns the number of templates restored.
func (m *Manager) RestoreCreated() int {
	restored := 0
	for id, ov := range m.store.ReadOverrides() {
		if ov.GroupID == "" {
			continue
		}
		if _, exists := m.catalog.FindDefinition(id); exists {
			continue
		}
		group, ok := m.catalog.GroupByID(ov.GroupID)
		if !ok {
			m.logger.Warn("skipping persisted template with unknown group", "template", id, "group", ov.GroupID)
			continue
		}

		_, err := m.catalog.AddDefinition(catalog.Definition{
			ID:        id,
			GroupID:   group.ID,
			Transport: transportFor(group.Channel),
			Status:    catalog.StatusInactive,
			Name:      ov.Name,
			Subject:   ov.Subject,
			Body:      ov.Body,
			Variables: declaredVariables(firstLocaleBody(ov.Body)),
			UpdatedAt: ov.UpdatedAt,
		})
		if err != nil {
			m.logger.Warn("failed to restore created template", "template", id, "error", err)
			continue
		}
		m.logger.Debug("restored created template", "template", id, "group", group.ID)
		restored++
	}
	return restored
}

// DeriveStatus computes the display status of a definition from the
// current snapshot, active map, and catalog defaults
func (m *Manager) DeriveStatus(def catalog.Definition) catalog.Status {
	return status.Derive(
		def,
		m.snapshots.Get(def.GroupID),
		m.view.ActiveMap(),
		m.catalog.DefaultActiveMap(),
	)
}

// ApplyOverrides returns the definition with its persisted override
// layered on top
func (m *Manager) ApplyOverrides(def catalog.Definition) catalog.Definition {
	ov, ok := m.view.Overrides()[def.ID]
	if !ok {
		return def
	}
	return def.WithOverride(ov.Body, ov.Name, ov.Subject, ov.Description, ov.UpdatedAt)
}

func (m *Manager) countStoreWrite(record string) {
	if m.metrics != nil {
		m.metrics.StoreWritesTotal.WithLabelValues(record).Inc()
	}
}

func transportFor(channel catalog.Channel) catalog.Transport {
	if channel == catalog.ChannelNotifications {
		return catalog.TransportPush
	}
	return catalog.TransportEmail
}

// firstLocaleBody picks one locale's text as the placeholder source,
// preferring the default locale order
func firstLocaleBody(body map[string]string) string {
	for _, locale := range catalog.DefaultLocales {
		if text := body[locale]; text != "" {
			return text
		}
	}
	for _, text := range body {
		return text
	}
	return ""
}

// declaredVariables derives a variable list from the placeholders a
// body references, in stable order
func declaredVariables(body string) []catalog.Variable {
	tokens := variables.ExtractPlaceholders(body)
	keys := make([]string, 0, len(tokens))
	for token := range tokens {
		keys = append(keys, token)
	}
	sort.Strings(keys)

	vars := make([]catalog.Variable, 0, len(keys))
	for _, token := range keys {
		key := token[2 : len(token)-1]
		vars = append(vars, catalog.Variable{Key: key, Placeholder: token})
	}
	return vars
}
