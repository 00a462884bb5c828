package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidHTTPURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com":       true,
		"  http://EXAMPLE.com/  ":   true,
		"https://[::1]:8080/health": true,
		"ftp://example.com":         false,
		"mailto:ops@example.com":    false,
		"https://":                  false,
		"":                          false,
	}
	for in, want := range cases {
		assert.Equal(t, want, isValidHTTPURL(in), "isValidHTTPURL(%q)", in)
	}
}

func TestNormalizeHTTPURL(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"whitespace and bare slash", " https://EXAMPLE.com/ ", "https://example.com"},
		{"default http port", "http://example.com:80", "http://example.com"},
		{"custom port kept", "HTTPS://Example.com:8443", "https://example.com:8443"},
		{"ipv6 default port", "https://[::1]:443/", "https://[::1]"},
		{"ipv6 custom port", "http://[::1]:8080/x", "http://[::1]:8080/x"},
		{"slash kept before query", "https://x.com/?a=1", "https://x.com/?a=1"},
		{"slash kept before fragment", "https://x.com/#top", "https://x.com/#top"},
		{"path slash kept", "https://example.com/p/", "https://example.com/p/"},
		{"no host returned trimmed", "  not a url ", "not a url"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, normalizeHTTPURL(c.in))
		})
	}
}
