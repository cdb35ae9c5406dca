package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalOrigin(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"http://localhost:8080", "http://localhost:8080", true},
		{"HTTPS://Example.COM", "https://example.com", true},
		{"http://example.com/path?q=1", "http://example.com", true},
		{"not-a-url", "", false},
		{"http://", "", false},
		{"://missing-scheme", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := canonicalOrigin(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewOriginPolicy(t *testing.T) {
	p, kept := newOriginPolicy([]string{"*", "http://A.example", "http://a.example", "", "bogus"})
	assert.True(t, p.allowAll)
	assert.Equal(t, []string{"*", "http://a.example"}, kept)
	assert.True(t, p.allows("https://elsewhere.example"))
	assert.False(t, p.allows(""))

	p, kept = newOriginPolicy(nil)
	assert.False(t, p.allowAll)
	assert.Nil(t, kept)
	assert.False(t, p.allows("http://localhost:8080"))
}

func TestCheckOrigin(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"http://chat.example"}
	SetConfig(cfg)

	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, checkOrigin(request("http://chat.example")))
	assert.True(t, checkOrigin(request("HTTP://CHAT.EXAMPLE")))
	assert.False(t, checkOrigin(request("http://evil.example")))
	assert.False(t, checkOrigin(request("")))
	assert.False(t, checkOrigin(request("garbage")))

	cfg.AllowedOrigins = []string{"*"}
	SetConfig(cfg)
	assert.True(t, checkOrigin(request("http://anything.example")))
	assert.False(t, checkOrigin(request("")))
}
