package report

import (
	"fmt"
	"regexp"
	"strings"
)

// Syntax-only patterns. A date like 9999-99-99 passes on purpose: the
// interview checks shape, not calendar validity.
var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Validate checks a raw answer against a field descriptor. It returns
// ok=false with a user-facing reason on rejection. Pure function, no
// side effects.
func Validate(f Field, text string) (ok bool, reason string) {
	if len(text) < f.Min {
		return false, fmt.Sprintf("Too short. Min %d characters.", f.Min)
	}
	if len(text) > f.Max {
		return false, fmt.Sprintf("Too long. Max %d characters.", f.Max)
	}

	switch f.Format {
	case FormatDate:
		if !datePattern.MatchString(text) {
			return false, "Use date format YYYY-MM-DD."
		}
	case FormatTime:
		if !timePattern.MatchString(text) {
			return false, "Use time format HH:MM."
		}
	case FormatEnum:
		for _, opt := range f.Options {
			if strings.EqualFold(text, opt) {
				return true, ""
			}
		}
		return false, "Please answer with one of: " + strings.Join(f.Options, ", ") + "."
	}

	return true, ""
}
