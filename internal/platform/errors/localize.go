package errors

import (
	"errors"

	"github.com/louisbranch/taskhub/internal/platform/errors/i18n"
)

// DefaultLocale is the default locale for error messages.
const DefaultLocale = "en-US"

// Localize renders the user-facing message for an error in the given locale,
// defaulting to en-US if the locale is empty. Unknown errors render a generic
// message so internal details never leak to consumers.
func Localize(err error, locale string) string {
	if err == nil {
		return ""
	}

	if locale == "" {
		locale = DefaultLocale
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		catalog := i18n.GetCatalog(locale)
		return catalog.Format(string(appErr.Code), appErr.Metadata)
	}

	return i18n.GetCatalog(locale).Format(string(CodeUnknown), nil)
}
