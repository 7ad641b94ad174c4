package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIPPrecedence(t *testing.T) {
	resolver := NewResolver("salt", true)

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name: "cdn header wins",
			headers: map[string]string{
				HeaderCFConnectingIP: "203.0.113.7",
				HeaderForwardedFor:   "198.51.100.1, 10.0.0.1",
				HeaderRealIP:         "192.0.2.9",
			},
			remoteAddr: "10.0.0.2:5555",
			want:       "203.0.113.7",
		},
		{
			name: "first forwarded entry",
			headers: map[string]string{
				HeaderForwardedFor: " 198.51.100.1 , 10.0.0.1",
				HeaderRealIP:       "192.0.2.9",
			},
			remoteAddr: "10.0.0.2:5555",
			want:       "198.51.100.1",
		},
		{
			name:       "real ip header",
			headers:    map[string]string{HeaderRealIP: "192.0.2.9"},
			remoteAddr: "10.0.0.2:5555",
			want:       "192.0.2.9",
		},
		{
			name:       "peer address",
			remoteAddr: "10.0.0.2:5555",
			want:       "10.0.0.2",
		},
		{
			name:       "peer address without port",
			remoteAddr: "10.0.0.3",
			want:       "10.0.0.3",
		},
		{
			name: "unknown",
			want: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			for key, value := range tt.headers {
				header.Set(key, value)
			}
			assert.Equal(t, tt.want, resolver.ClientIP(header, tt.remoteAddr))
		})
	}
}

func TestClientIPIgnoresHeadersWhenUntrusted(t *testing.T) {
	resolver := NewResolver("salt", false)

	header := http.Header{}
	header.Set(HeaderCFConnectingIP, "203.0.113.7")
	header.Set(HeaderForwardedFor, "198.51.100.1")

	assert.Equal(t, "10.0.0.2", resolver.ClientIP(header, "10.0.0.2:443"))
}

func TestResolveIsDeterministic(t *testing.T) {
	resolver := NewResolver("salt", true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderForwardedFor, "198.51.100.1")

	first := resolver.Resolve(req, nil)
	second := resolver.Resolve(req, nil)

	require.True(t, first.Valid())
	assert.Equal(t, first.IPHash, second.IPHash)
	assert.Len(t, first.IPHash, 64)
	assert.NotContains(t, first.IPHash, "198.51.100.1")
	assert.False(t, first.HasUser())

	other := NewResolver("other-salt", true).Resolve(req, nil)
	assert.NotEqual(t, first.IPHash, other.IPHash)
}

func TestResolveKeepsUser(t *testing.T) {
	resolver := NewResolver("salt", true)
	userID := uint(7)

	id := resolver.Resolve(httptest.NewRequest(http.MethodGet, "/", nil), &userID)
	require.True(t, id.HasUser())
	assert.Equal(t, uint(7), *id.UserID)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "abc", Redact("abc"))
	assert.Equal(t, "0123456789ab...", Redact("0123456789abcdef"))
}
