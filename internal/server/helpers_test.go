package server

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/jackzampolin/docextract/internal/testutil"
)

// startInBackground starts srv and waits until its listener is bound.
func startInBackground(t *testing.T, srv *Server) *testutil.StartServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("Start() error = %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("server did not bind")
	}

	starter := &testutil.StartServer{Cancel: cancel, Done: done}
	t.Cleanup(starter.Stop)
	return starter
}

func splitAddr(t *testing.T, addr string) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", addr, err)
	}
	return host, port
}

func serverURL(t *testing.T, srv *Server) string {
	t.Helper()
	return "http://" + srv.Addr()
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
