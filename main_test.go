package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestListenWithFallback(t *testing.T) {
	// Occupy a port, then ask for it; the fallback must land on a successor.
	first, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to bind placeholder listener: %v", err)
	}
	defer first.Close()
	busy := first.Addr().(*net.TCPAddr).Port

	ln, port, err := listenWithFallback(busy)
	if err != nil {
		// Every successor may be taken on a loaded machine; that is not a
		// code defect.
		t.Skipf("no free successor port near %d: %v", busy, err)
	}
	defer ln.Close()

	if port == busy {
		t.Errorf("fallback returned the busy port %d", busy)
	}
	if port < busy || port > busy+portRetries {
		t.Errorf("port %d outside fallback range %d-%d", port, busy, busy+portRetries)
	}
}

func TestListenWithFallbackFreePort(t *testing.T) {
	placeholder, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	free := placeholder.Addr().(*net.TCPAddr).Port
	placeholder.Close()

	ln, port, err := listenWithFallback(free)
	if err != nil {
		t.Skipf("port %d got taken before the bind: %v", free, err)
	}
	defer ln.Close()

	if port != free {
		t.Errorf("got port %d, want the requested free port %d", port, free)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	if !fileExists(path) {
		t.Error("expected true for existing file")
	}
	if fileExists(filepath.Join(dir, "absent")) {
		t.Error("expected false for missing file")
	}
}
