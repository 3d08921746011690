// Package store is the persisted local cache behind the notification
// dashboard: the per-group active-template selection and the
// per-template content overrides. It is the only writer of that state;
// consumers subscribe for change events instead of re-reading on a
// timer.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketNotifications = []byte("notifications")
	keyActiveMap        = []byte("active_map")
	keyOverrides        = []byte("overrides")
)

// Override is a locally cached edit layered on top of a template
// definition. Body is a partial locale map: merging it must never drop
// locales it does not carry. GroupID is set only for templates created
// through the dashboard; it lets the catalog rebuild them after a
// restart.
type Override struct {
	Body        map[string]string `json:"body,omitempty"`
	Name        string            `json:"name,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Description string            `json:"description,omitempty"`
	GroupID     string            `json:"groupId,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt,omitzero"`
}

// EventKind names the record a change event is about
type EventKind string

const (
	EventActiveMap EventKind = "active-map-changed"
	EventOverrides EventKind = "override-changed"
)

// Event is a post-commit change notification
type Event struct {
	Kind       EventKind
	GroupID    string // set for active-map changes made via SetActiveTemplate
	TemplateID string // set for override changes
}

// Store provides access to the two persisted records
type Store struct {
	db     *bolt.DB
	logger *slog.Logger

	mu      sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a store on an open bbolt database
func New(db *bolt.DB, logger *slog.Logger) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNotifications)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notifications bucket: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger,
		subs:   make(map[int]chan Event),
	}, nil
}

// ReadActiveMap returns the persisted groupID -> templateID selection.
// Absent or corrupt data reads as nil, never an error: the caller falls
// back to catalog defaults.
func (s *Store) ReadActiveMap() map[string]string {
	var m map[string]string
	if !s.read(keyActiveMap, &m) {
		return nil
	}
	return m
}

// WriteActiveMap replaces the active-map record and notifies
// subscribers
func (s *Store) WriteActiveMap(m map[string]string) error {
	if err := s.write(keyActiveMap, m); err != nil {
		return err
	}
	s.notify(Event{Kind: EventActiveMap})
	return nil
}

// SetActiveTemplate merges a single group selection into the active map
func (s *Store) SetActiveTemplate(groupID, templateID string) error {
	m := s.ReadActiveMap()
	if m == nil {
		m = make(map[string]string)
	}
	m[groupID] = templateID

	if err := s.write(keyActiveMap, m); err != nil {
		return err
	}
	s.notify(Event{Kind: EventActiveMap, GroupID: groupID, TemplateID: templateID})
	return nil
}

// ReadOverrides returns the persisted templateID -> override map, or
// nil when absent or corrupt
func (s *Store) ReadOverrides() map[string]Override {
	var m map[string]Override
	if !s.read(keyOverrides, &m) {
		return nil
	}
	return m
}

// SaveOverride merges a partial override into the record for a
// template: Body merges locale-by-locale, scalar fields replace when
// set. The write commits before subscribers are notified.
func (s *Store) SaveOverride(templateID string, partial Override) error {
	all := s.ReadOverrides()
	if all == nil {
		all = make(map[string]Override)
	}

	cur := all[templateID]
	if len(partial.Body) > 0 {
		if cur.Body == nil {
			cur.Body = make(map[string]string, len(partial.Body))
		}
		for locale, text := range partial.Body {
			cur.Body[locale] = text
		}
	}
	if partial.Name != "" {
		cur.Name = partial.Name
	}
	if partial.Subject != "" {
		cur.Subject = partial.Subject
	}
	if partial.Description != "" {
		cur.Description = partial.Description
	}
	if partial.GroupID != "" {
		cur.GroupID = partial.GroupID
	}
	if !partial.UpdatedAt.IsZero() {
		cur.UpdatedAt = partial.UpdatedAt
	}
	all[templateID] = cur

	if err := s.write(keyOverrides, all); err != nil {
		return err
	}
	s.notify(Event{Kind: EventOverrides, TemplateID: templateID})
	return nil
}

// Subscribe registers a change-event channel. The returned func
// unsubscribes. Delivery is non-blocking: a subscriber that stops
// draining drops events rather than stalling writers.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 16)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("dropping store event for slow subscriber", "kind", ev.Kind)
		}
	}
}

// read reports false when the record is unreadable. Unmarshal can
// populate the destination partially before failing, so the caller must
// discard the destination on false instead of returning it.
func (s *Store) read(key []byte, out any) bool {
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNotifications).Get(key)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, out)
	})
	if err != nil {
		// Corrupt data reads as no data.
		s.logger.Debug("discarding unreadable store record", "key", string(key), "error", err)
		return false
	}
	return true
}

func (s *Store) write(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", string(key), err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotifications).Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", string(key), err)
	}
	return nil
}
