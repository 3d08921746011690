package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Channel is the top-level delivery medium a template group belongs to.
// The set is closed: templates are either part of the mailing product or
// the in-app/push notifications product.
type Channel string

const (
	ChannelMailing       Channel = "mailing"
	ChannelNotifications Channel = "notifications"
)

// ParseChannel parses a channel string
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelMailing:
		return ChannelMailing, nil
	case ChannelNotifications:
		return ChannelNotifications, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Transport is the concrete delivery mechanism of a single template
type Transport string

const (
	TransportEmail Transport = "email"
	TransportPush  Transport = "push"
)

// Status is a template's lifecycle state. On a Definition it is only the
// compiled-in default hint; the display-facing state comes from
// status.Derive after reconciling the local active map and the remote
// snapshot.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDraft    Status = "draft"
)

// DefaultLocales is the locale set a newly created template is seeded
// with. Creation takes a single shared text; per-locale content arrives
// later through overrides.
var DefaultLocales = []string{"en", "es"}

// Group is a named bucket of templates within a channel (a category,
// e.g. "OTP" or "Security alerts")
type Group struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Channel     Channel `json:"channel"`
	Description string  `json:"description,omitempty"`
}

// Variable documents one placeholder a template's body may reference
type Variable struct {
	Key         string `json:"key"`
	Placeholder string `json:"placeholder"`
	SampleValue string `json:"sampleValue"`
	Required    bool   `json:"required,omitempty"`
}

// Metrics carries informational delivery counters for a template. They
// are display-only and never load-bearing.
type Metrics struct {
	Sent    int `json:"sent"`
	Opened  int `json:"opened"`
	Clicked int `json:"clicked"`
}

// Definition is the canonical record for one template, independent of
// any local override or remote state
type Definition struct {
	ID           string            `json:"id"`
	Key          string            `json:"key"`
	GroupID      string            `json:"groupId"`
	ChannelGroup Channel           `json:"channelGroup"`
	Transport    Transport         `json:"transport"`
	Status       Status            `json:"status"`
	Name         string            `json:"name"`
	Subject      string            `json:"subject,omitempty"`
	Description  string            `json:"description,omitempty"`
	Body         map[string]string `json:"body"`
	Variables    []Variable        `json:"variables,omitempty"`
	Metrics      Metrics           `json:"metrics"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// NormalizedName returns the definition's name in the lower-cased form
// used for remote snapshot lookups and duplicate checks
func (d Definition) NormalizedName() string {
	return NormalizeName(d.Name)
}

// NormalizeName lower-cases and trims a template or group name for
// case-insensitive comparison
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Slug derives the stable identifier for a user-created template from
// its display name: lower-case, with runs of spaces and punctuation
// collapsed to single hyphens
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true // trims leading separators
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
