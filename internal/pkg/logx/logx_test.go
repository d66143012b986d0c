package logx

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "192.168.1.0", anonymizeIP("192.168.1.77:5512"))
	assert.Equal(t, "127.0.0.1", anonymizeIP("127.0.0.1:80"))
	assert.Equal(t, "2001:db8:85a3:8d3::", anonymizeIP("[2001:db8:85a3:8d3:1319:8a2e:370:7348]:443"))
	assert.Equal(t, "unknown_ip", anonymizeIP("not-an-ip"))
}

func TestRedactURI(t *testing.T) {
	u, err := url.Parse("http://localhost/messages?token=secret&start_time=10")
	require.NoError(t, err)

	got := redactURI(u)
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "token=REDACTED")
	assert.Contains(t, got, "start_time=10")

	plain, err := url.Parse("http://localhost/health")
	require.NoError(t, err)
	assert.Equal(t, "/health", redactURI(plain))
}
