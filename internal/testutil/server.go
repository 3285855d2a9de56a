package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// NewIPv4Server starts an httptest server on 127.0.0.1. Some CI sandboxes
// have no IPv6 loopback, which httptest.NewServer may pick.
func NewIPv4Server(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen on IPv4 loopback: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	t.Cleanup(server.Close)
	return server
}
