package validate_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/changedetection-mcp/internal/validate"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"https with path", "https://example.com/page", true},
		{"http bare domain", "http://example.com", true},
		{"trailing slash", "https://example.com/", true},
		{"localhost with port", "http://localhost:5000", true},
		{"ipv4 with port", "http://192.168.1.10:8080/api", true},
		{"query string", "https://example.com/search?q=news", true},
		{"uppercase scheme", "HTTPS://EXAMPLE.COM/PAGE", true},
		{"subdomain", "https://status.internal.example.org", true},
		{"ftp scheme", "ftp://example.com", false},
		{"no scheme", "example.com", false},
		{"bare word host", "https://example", false},
		{"empty", "", false},
		{"whitespace in path", "https://example.com/a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validate.URL(tt.in); got != tt.want {
				t.Errorf("URL(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestUUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"lowercase", "550e8400-e29b-41d4-a716-446655440000", true},
		{"uppercase", "550E8400-E29B-41D4-A716-446655440000", true},
		{"mixed case", "550e8400-E29B-41d4-A716-446655440000", true},
		{"not a uuid", "not-a-uuid", false},
		{"missing group", "550e8400-e29b-41d4-446655440000", false},
		{"too long", "550e8400-e29b-41d4-a716-4466554400001", false},
		{"non-hex", "550e8400-e29b-41d4-a716-44665544000g", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validate.UUID(tt.in); got != tt.want {
				t.Errorf("UUID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		max  int
		want string
	}{
		{"plain string", "hello", 100, "hello"},
		{"trims whitespace", "  padded  ", 100, "padded"},
		{"strips nul bytes", "a\x00b", 100, "ab"},
		{"truncates", strings.Repeat("x", 10), 4, "xxxx"},
		{"non-string int", 42, 100, "42"},
		{"non-string bool", true, 100, "true"},
		{"nil value", nil, 100, "<nil>"},
		{"truncate before trim", "abc   ", 4, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validate.Sanitize(tt.in, tt.max); got != tt.want {
				t.Errorf("Sanitize(%v, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestSanitizeNeverPanics(t *testing.T) {
	for _, v := range []any{nil, 3.14, []string{"a"}, map[string]int{"k": 1}, struct{}{}} {
		_ = validate.Sanitize(v, 16)
	}
}
