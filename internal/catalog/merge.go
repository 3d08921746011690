package catalog

import "time"

// WithOverride layers locally cached edits on top of a definition copy.
// Body locales merge locale-by-locale: locales the override does not
// carry are preserved. Scalar fields replace only when non-empty.
func (d Definition) WithOverride(body map[string]string, name, subject, description string, updatedAt time.Time) Definition {
	merged := copyDefinition(d)
	if len(body) > 0 {
		if merged.Body == nil {
			merged.Body = make(map[string]string, len(body))
		}
		for locale, text := range body {
			merged.Body[locale] = text
		}
	}
	if name != "" {
		merged.Name = name
	}
	if subject != "" {
		merged.Subject = subject
	}
	if description != "" {
		merged.Description = description
	}
	if !updatedAt.IsZero() {
		merged.UpdatedAt = updatedAt
	}
	return merged
}
