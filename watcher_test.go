package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsRelevantFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"plan.md", true},
		{"snapshot.json", true},
		{"REPORT.MD", true},
		{"", false},
		{".hidden.md", false},
		{"#autosave.md#", false},
		{"notes.md~", false},
		{"notes.md.swp", false},
		{"notes.md.swx", false},
		{"upload.md.tmp", false},
		{"old.md.bak", false},
		{"merge.md.orig", false},
		{"readme.txt", false},
		{"archive.tar.gz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRelevantFile(tt.name); got != tt.want {
				t.Errorf("isRelevantFile(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestPickWatchStrategy(t *testing.T) {
	s := pickWatchStrategy()
	if platformSupportsRecursiveWatch() {
		if s.name() != "recursive" {
			t.Errorf("strategy = %q, want recursive", s.name())
		}
		return
	}
	if s.name() != "walk" {
		t.Errorf("strategy = %q, want walk", s.name())
	}
}

func TestWatchRouterDebouncesBurst(t *testing.T) {
	root := newTestRoot(t)

	changes := make(chan string, 8)
	router, err := newWatchRouter(root, artifactFolders, debounceWindow, func(file string) {
		changes <- file
	})
	if err != nil {
		t.Fatalf("newWatchRouter failed: %v", err)
	}
	defer router.close()

	// Two writes inside one quiet window collapse into a single
	// notification naming the later file.
	writeArtifact(t, root, "plans", "first.md", "# First")
	time.Sleep(10 * time.Millisecond)
	writeArtifact(t, root, "plans", "second.md", "# Second")

	// On a loaded machine the two writes can straddle a window boundary and
	// produce two notifications; the last one must still carry the later
	// file's name.
	var last string
	deadline := time.After(3 * time.Second)
	for last == "" || last == "first.md" {
		select {
		case last = <-changes:
		case <-deadline:
			if last == "" {
				t.Fatal("no notification after debounce window")
			}
			t.Fatalf("only saw notification for %q", last)
		}
	}
	if last != "second.md" {
		t.Errorf("notification carried %q, want second.md", last)
	}
}

func TestWatchRouterIgnoresIrrelevantFiles(t *testing.T) {
	root := newTestRoot(t)

	changes := make(chan string, 8)
	router, err := newWatchRouter(root, artifactFolders, debounceWindow, func(file string) {
		changes <- file
	})
	if err != nil {
		t.Fatalf("newWatchRouter failed: %v", err)
	}
	defer router.close()

	writeArtifact(t, root, "plans", "scratch.md.swp", "swap")
	writeArtifact(t, root, "plans", ".hidden.md", "hidden")

	select {
	case file := <-changes:
		t.Errorf("unexpected notification for %q", file)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatchRouterDeleteTriggersNotification(t *testing.T) {
	root := newTestRoot(t)
	path := writeArtifact(t, root, "research", "doomed.md", "# Doomed")

	changes := make(chan string, 8)
	router, err := newWatchRouter(root, artifactFolders, debounceWindow, func(file string) {
		changes <- file
	})
	if err != nil {
		t.Fatalf("newWatchRouter failed: %v", err)
	}
	defer router.close()

	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}

	select {
	case file := <-changes:
		if file != "doomed.md" {
			t.Errorf("notification carried %q, want doomed.md", file)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no notification for deletion")
	}
}

func TestWatchRouterCloseIsIdempotent(t *testing.T) {
	root := newTestRoot(t)
	router, err := newWatchRouter(root, artifactFolders, debounceWindow, func(string) {})
	if err != nil {
		t.Fatalf("newWatchRouter failed: %v", err)
	}
	router.close()
	router.close()
}

func TestNewWatchRouterMissingFolders(t *testing.T) {
	// Only a subset of the artifact folders exists; the rest are skipped
	// without error.
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "plans"), 0755); err != nil {
		t.Fatalf("failed to create folder: %v", err)
	}

	router, err := newWatchRouter(root, artifactFolders, debounceWindow, func(string) {})
	if err != nil {
		t.Fatalf("newWatchRouter failed: %v", err)
	}
	router.close()
}
