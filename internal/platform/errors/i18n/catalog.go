// Package i18n provides per-locale catalogs for user-facing error messages.
package i18n

import (
	"strings"
	"text/template"
)

// Code mirrors the error codes defined in internal/platform/errors.
// Codes are duplicated as strings to avoid an import cycle.
type Code = string

// Catalog holds the user-facing messages for one locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

// Locale returns the catalog's BCP 47 locale tag.
func (c *Catalog) Locale() string {
	if c == nil {
		return ""
	}
	return c.locale
}

// Format renders the message for a code, templating in metadata values.
// Unknown codes fall back to the generic unknown-error message.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	if c == nil {
		return ""
	}
	message, ok := c.messages[code]
	if !ok {
		message = c.messages[CodeUnknown]
	}
	if len(metadata) == 0 || !strings.Contains(message, "{{") {
		return message
	}

	tmpl, err := template.New(code).Parse(message)
	if err != nil {
		return message
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, metadata); err != nil {
		return message
	}
	return out.String()
}

// GetCatalog returns the catalog for a locale, defaulting to en-US.
func GetCatalog(locale string) *Catalog {
	switch strings.TrimSpace(locale) {
	case "en-US", "en", "":
		return enUSCatalog
	default:
		return enUSCatalog
	}
}
