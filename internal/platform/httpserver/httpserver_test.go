package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDerivesTimeouts(t *testing.T) {
	srv := New(":0", http.NotFoundHandler(), 10*time.Second)

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 10*time.Second, srv.ReadTimeout)
	assert.Greater(t, srv.WriteTimeout, srv.ReadTimeout)
	assert.Equal(t, readHeaderTimeout, srv.ReadHeaderTimeout)
	assert.NotZero(t, srv.IdleTimeout)
}
