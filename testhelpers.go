package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestRoot creates an artifact root with the standard folder layout.
func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, folder := range artifactFolders {
		if err := os.Mkdir(filepath.Join(root, folder), 0755); err != nil {
			t.Fatalf("failed to create folder %s: %v", folder, err)
		}
	}
	return root
}

// writeArtifact creates a document under root/folder and returns its path.
func writeArtifact(t *testing.T, root, folder, name, content string) string {
	t.Helper()
	path := filepath.Join(root, folder, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file %s: %v", path, err)
	}
	return path
}

// newTestApp builds an app over a fresh artifact root.
func newTestApp(t *testing.T) (*app, string) {
	t.Helper()
	root := newTestRoot(t)
	a, err := newApp(root)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	t.Cleanup(a.hub.closeAll)
	return a, a.root
}

// doRequest runs one request through the full handler tree.
func doRequest(t *testing.T, a *app, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)
	return rec
}

// decodeJSONBody unmarshals a response body into v.
func decodeJSONBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response body: %v\nbody: %s", err, rec.Body.String())
	}
}

// assertStatusCode checks HTTP status code with clear error message
func assertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected status code %d, got %d", want, got)
	}
}

// assertContains is a helper for checking string containment with clear error messages
func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected string to contain %q, got: %s", substr, s)
	}
}

// assertNotContains is a helper for checking string non-containment
func assertNotContains(t *testing.T, s, substr string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Errorf("expected string NOT to contain %q, but it does", substr)
	}
}
