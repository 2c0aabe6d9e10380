// Package validate provides pure input validation and sanitisation helpers
// used before any value is forwarded to the changedetection.io API.
//
// All functions are side-effect free and perform no network resolution.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxLength is the sanitisation cap applied to free-form strings when
// no tighter limit applies.
const DefaultMaxLength = 2048

// Error marks a failure as a validation failure. Callers classify errors with
// [errors.As] to decide whether a message is safe to surface verbatim.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// Errorf builds a validation [Error] from a format string.
func Errorf(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// urlRE matches http/https URLs with a dotted hostname, "localhost", or a
// dotted-quad IPv4 literal, an optional port, and an optional path.
var urlRE = regexp.MustCompile(`(?i)^https?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}\.?|` +
	`localhost|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// uuidRE matches the canonical 8-4-4-4-12 hexadecimal UUID grouping,
// independent of version bits.
var uuidRE = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// URL reports whether s is a well-formed http or https URL.
func URL(s string) bool {
	return urlRE.MatchString(s)
}

// UUID reports whether s is a canonically formatted UUID.
func UUID(s string) bool {
	return uuidRE.MatchString(s)
}

// Sanitize coerces v to its textual representation, truncates it to maxLength
// characters, strips NUL bytes, and trims surrounding whitespace. It never
// fails; non-string values go through their default formatting.
func Sanitize(v any, maxLength int) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if maxLength > 0 {
		if r := []rune(s); len(r) > maxLength {
			s = string(r[:maxLength])
		}
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
