package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/crestbank/notifyd/internal/catalog"
	"github.com/crestbank/notifyd/internal/gateway"
	"github.com/crestbank/notifyd/internal/store"
	"github.com/crestbank/notifyd/internal/variables"
)

// State is an editing session's current position in its lifecycle
type State string

const (
	StateViewing    State = "viewing"
	StateEditing    State = "editing"
	StateSaving     State = "saving"
	StateActivating State = "activating"
)

// Session is an editing session over a single template. Save and
// Activate run their gateway write first and touch local state only on
// success; both return the session to Viewing when they finish, with
// LastError set on failure.
type Session struct {
	m  *Manager
	id string

	mu      sync.Mutex
	state   State
	lastErr error
}

// Open starts a session over an existing template
func (m *Manager) Open(templateID string) (*Session, error) {
	if _, ok := m.catalog.FindDefinition(templateID); !ok {
		return nil, ErrTemplateNotFound
	}
	return &Session{m: m, id: templateID, state: StateViewing}, nil
}

// State returns the session's current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error recorded by the most recent failed
// operation, or nil
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// BeginEdit moves the session from Viewing to Editing
func (s *Session) BeginEdit() error {
	return s.transition(StateViewing, StateEditing)
}

// View is the assembled editing view of a template: the definition
// with its override applied, its derived status, and the gateway's
// record when reachable
type View struct {
	Definition catalog.Definition      `json:"definition"`
	Status     catalog.Status          `json:"status"`
	Remote     *gateway.RemoteTemplate `json:"remote,omitempty"`
}

// Load assembles the template's view. The remote fetch is best effort:
// an unreachable gateway degrades to the local view rather than
// failing the load.
func (s *Session) Load(ctx context.Context) (View, error) {
	def, ok := s.m.catalog.FindDefinition(s.id)
	if !ok {
		return View{}, ErrTemplateNotFound
	}
	def = s.m.ApplyOverrides(def)

	view := View{
		Definition: def,
		Status:     s.m.DeriveStatus(def),
	}

	ctx, cancel := context.WithTimeout(ctx, s.m.timeout)
	defer cancel()

	remote, err := s.m.gw.FetchByName(ctx, def.Name)
	switch {
	case err == nil:
		view.Remote = remote
	case errors.Is(err, gateway.ErrNotFound):
		// Built-in templates may not exist remotely yet.
	default:
		s.m.logger.Debug("remote template fetch failed during load", "template", s.id, "error", err)
	}

	return view, nil
}

// Save writes edited body text for one locale. Write-through ordering
// is strict: the gateway commits first and the local cache second, so
// an edit is never shown as saved when the remote write failed.
func (s *Session) Save(ctx context.Context, locale, text string) error {
	if err := s.transition(StateEditing, StateSaving); err != nil {
		return err
	}

	err := s.save(ctx, locale, text)
	s.finish(err)
	return err
}

func (s *Session) save(ctx context.Context, locale, text string) error {
	def, ok := s.m.catalog.FindDefinition(s.id)
	if !ok {
		return ErrTemplateNotFound
	}
	if locale == "" {
		return &ValidationError{Field: "locale", Message: "locale is required"}
	}
	if err := s.categoryConstraint(def, text); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.m.timeout)
	defer cancel()

	// Phase 1: remote commit.
	if err := s.m.gw.UpdateContent(ctx, def.Name, text); err != nil {
		return err
	}

	// Phase 2: local cache, then the in-memory definition. The store
	// broadcasts after its own commit.
	if err := s.m.store.SaveOverride(s.id, store.Override{
		Body:      map[string]string{locale: text},
		UpdatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("saved remotely but not locally: %w", err)
	}
	s.m.view.invalidate(store.EventOverrides)
	s.m.countStoreWrite("overrides")

	s.m.catalog.MergeBody(s.id, map[string]string{locale: text})
	s.m.logger.Info("saved template content", "template", s.id, "locale", locale)
	return nil
}

// Activate marks this template active with the gateway, records the
// local selection, and fires the advisory telemetry. The previously
// active sibling is not deactivated remotely; its snapshot entry stays
// stale until the group's next refresh.
func (s *Session) Activate(ctx context.Context) error {
	if err := s.transition(StateViewing, StateActivating); err != nil {
		return err
	}

	err := s.activate(ctx)
	s.finish(err)
	return err
}

func (s *Session) activate(ctx context.Context) error {
	def, ok := s.m.catalog.FindDefinition(s.id)
	if !ok {
		return ErrTemplateNotFound
	}
	group, ok := s.m.catalog.GroupByID(def.GroupID)
	if !ok {
		return ErrGroupNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.m.timeout)
	defer cancel()

	if err := s.m.gw.Activate(ctx, string(group.Channel), group.Name, def.Name, true); err != nil {
		return err
	}

	if prev, ok := s.m.store.ReadActiveMap()[group.ID]; ok && prev != s.id {
		s.m.logger.Debug("previous active template keeps a stale remote flag until the next snapshot refresh",
			"group", group.ID, "previous", prev)
	}

	if err := s.m.store.SetActiveTemplate(group.ID, s.id); err != nil {
		return fmt.Errorf("activated remotely but selection not persisted: %w", err)
	}
	s.m.view.invalidate(store.EventActiveMap)
	s.m.countStoreWrite("active_map")

	s.m.catalog.SetStatus(s.id, catalog.StatusActive)

	// Advisory telemetry: best effort, never surfaced, never rolled
	// back. Detached from the request context so a finished request
	// does not cancel it.
	notice := gateway.ActivationNotice{
		Channels:   []string{string(group.Channel)},
		Category:   group.Name,
		Template:   def.Name,
		CompanyID:  s.m.companyID,
		TemplateID: s.id,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.m.timeout)
		defer cancel()
		if err := s.m.gw.NotifyActivation(ctx, notice); err != nil {
			s.m.logger.Warn("activation telemetry failed", "template", s.id, "error", err)
		}
	}()

	if s.m.metrics != nil {
		s.m.metrics.TemplatesActivatedTotal.Inc()
	}
	s.m.logger.Info("activated template", "template", s.id, "group", group.ID)
	return nil
}

func (s *Session) categoryConstraint(def catalog.Definition, text string) error {
	group, ok := s.m.catalog.GroupByID(def.GroupID)
	if !ok {
		return ErrGroupNotFound
	}
	return variables.ValidateCategoryConstraint(group.Name, text)
}

func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("cannot %s while %s", to, s.state)
	}
	s.state = to
	return nil
}

// finish returns the session to Viewing, recording the operation's
// outcome
func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateViewing
	s.lastErr = err
}
