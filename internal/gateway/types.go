package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RemoteTemplate is the gateway's record for one template, fetched by
// name
type RemoteTemplate struct {
	Name      string   `json:"name"`
	Template  string   `json:"template"`
	Active    FlexBool `json:"active"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// TemplateFlag is one entry of a by-filters listing: a template name
// and its authoritative active flag
type TemplateFlag struct {
	Name   string   `json:"name"`
	Active FlexBool `json:"active"`
}

// CreateRequest is the body for POST /api/templates
type CreateRequest struct {
	CompanyID string `json:"companyId"`
	Channel   string `json:"channel"`
	Category  string `json:"category"`
	Name      string `json:"name"`
	Template  string `json:"template"`
	Active    bool   `json:"active"`
	From      string `json:"from,omitempty"`
	Subject   string `json:"subject,omitempty"`
}

// ActivationNotice is the advisory telemetry body for
// POST /api/notifications/activate-template. The response is ignored.
type ActivationNotice struct {
	Channels   []string `json:"channels"`
	Category   string   `json:"category"`
	Template   string   `json:"template"`
	CompanyID  string   `json:"companyId,omitempty"`
	TemplateID string   `json:"templateId"`
}

// FlexBool decodes an active flag that the gateway serves sometimes as
// a JSON boolean and sometimes as the string "true"/"false"
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid boolean string %q", s)
		}
		*b = FlexBool(v)
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = FlexBool(v)
	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}
