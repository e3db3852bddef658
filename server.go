package main

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/tidwall/pretty"
	"github.com/yuin/goldmark"
)

//go:embed shell/*
var shellFS embed.FS

// defaultMaxBody caps POST /api/doc payloads. Artifact documents are small;
// anything bigger is a mistake or an attack.
const defaultMaxBody = 1 << 20

// lastModifiedHeader carries the document's modification time as an RFC 3339
// timestamp (the HTTP Last-Modified format cannot express sub-second times).
const lastModifiedHeader = "X-Last-Modified"

// app holds everything the handlers need. All registry-like state lives here
// rather than in package globals so tests can run independent instances.
type app struct {
	root    string
	hub     *broadcastHub
	router  *watchRouter
	maxBody int64
	md      goldmark.Markdown
	shell   *template.Template
	css     string
	viewer  string
	editor  string
}

func newApp(root string) (*app, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot access root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	a := &app{
		root:    abs,
		hub:     newBroadcastHub(),
		maxBody: defaultMaxBody,
		md:      newMarkdownRenderer(),
	}
	if err := a.loadShell(); err != nil {
		return nil, err
	}
	return a, nil
}

// shutdown tears down the background machinery: the watcher first so no new
// broadcasts originate, then every push client. Safe to call more than once.
func (a *app) shutdown() {
	if a.router != nil {
		a.router.close()
	}
	a.hub.closeAll()
}

func (a *app) loadShell() error {
	page, err := shellFS.ReadFile("shell/index.html")
	if err != nil {
		return fmt.Errorf("cannot load shell page: %w", err)
	}
	a.shell, err = template.New("shell").Parse(string(page))
	if err != nil {
		return fmt.Errorf("cannot parse shell page: %w", err)
	}

	for _, asset := range []struct {
		path string
		dst  *string
	}{
		{"shell/style.css", &a.css},
		{"shell/viewer.js", &a.viewer},
		{"shell/editor.js", &a.editor},
	} {
		data, err := shellFS.ReadFile(asset.path)
		if err != nil {
			return fmt.Errorf("cannot load %s: %w", asset.path, err)
		}
		*asset.dst = string(data)
	}
	return nil
}

// routes builds the handler tree. Every route is wrapped in panic recovery
// so one failing request cannot take the process down.
func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", withRecovery(a.serveShell))
	mux.HandleFunc("/api/tree", withRecovery(a.serveTree))
	mux.HandleFunc("/api/doc", withRecovery(a.handleDoc))
	mux.HandleFunc("/events", withRecovery(a.serveEvents))
	return mux
}

// withRecovery wraps an HTTP handler with panic recovery.
func withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC: %v\n%s", err, debug.Stack())
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling response: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError emits the JSON error envelope. Messages are generic by policy:
// they never include filesystem paths.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (a *app) serveTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, buildTree(a.root, time.Now()))
}

func (a *app) handleDoc(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.serveDoc(w, r)
	case http.MethodPost:
		a.saveDoc(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *app) serveDoc(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "missing path parameter")
		return
	}

	full, err := resolvePath(a.root, rel)
	if err != nil {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	ext := strings.ToLower(filepath.Ext(full))
	if !servedExtensions[ext] {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	info, err := os.Stat(full)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	content, err := os.ReadFile(full)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	mtime := info.ModTime().UTC().Format(time.RFC3339)
	w.Header().Set(lastModifiedHeader, mtime)
	w.Header().Set("Cache-Control", "no-cache")

	switch r.URL.Query().Get("format") {
	case "":
		if ext == ".json" {
			// Data snapshots are read-only; pretty-print for display.
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Write(pretty.Pretty(content))
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write(content)

	case "html":
		if ext != ".md" {
			writeError(w, http.StatusBadRequest, "format not supported for this document")
			return
		}
		var buf bytes.Buffer
		if err := a.md.Convert(content, &buf); err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		buf.WriteTo(w)

	case "blocks":
		if ext != ".md" {
			writeError(w, http.StatusBadRequest, "format not supported for this document")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"blocks": parseBlocks(content),
			"mtime":  mtime,
		})

	default:
		writeError(w, http.StatusBadRequest, "unknown format")
	}
}

// saveRequest is the write payload: raw markdown content, or the structural
// block representation produced by the editor, which the server renders back
// to markdown.
type saveRequest struct {
	Path    string  `json:"path"`
	Content *string `json:"content"`
	Blocks  []block `json:"blocks"`
}

func (a *app) saveDoc(w http.ResponseWriter, r *http.Request) {
	// Reject oversized payloads before buffering anything.
	if r.ContentLength > a.maxBody {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	var req saveRequest
	body := http.MaxBytesReader(w, r.Body, a.maxBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}
	if req.Content == nil && req.Blocks == nil {
		writeError(w, http.StatusBadRequest, "missing content")
		return
	}

	full, err := resolvePath(a.root, req.Path)
	if err != nil {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	// Defense in depth: only rich-text-convertible formats may be
	// overwritten, regardless of what the sandbox resolved.
	if !editableExtensions[strings.ToLower(filepath.Ext(full))] {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	content := ""
	if req.Blocks != nil {
		content = renderBlocks(req.Blocks)
	} else {
		content = *req.Content
	}

	if err := atomicWriteFile(full, content); err != nil {
		log.Printf("Error saving document: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save")
		return
	}

	info, err := os.Stat(full)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"mtime":   info.ModTime().UTC().Format(time.RFC3339),
	})
}

// atomicWriteFile writes content to a sibling temp file and renames it over
// the target, so readers never observe a half-written document.
func atomicWriteFile(path, content string) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".docsight-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer os.Remove(tmpPath)

	if _, err := tmpFile.WriteString(content); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (a *app) serveEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Printf("SSE error: ResponseWriter doesn't support flushing")
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, events := a.hub.register()
	defer a.hub.unregister(id)

	// Comment-only heartbeats keep intermediaries from closing the stream.
	ticker := time.NewTicker(a.hub.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				// Hub shut down; the channel close is the signal.
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshaling push event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

type shellData struct {
	Root     string
	CSS      template.CSS
	ViewerJS template.JS
	EditorJS template.JS
}

func (a *app) serveShell(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data := shellData{
		Root:     filepath.Base(a.root),
		CSS:      template.CSS(a.css),
		ViewerJS: template.JS(a.viewer),
		EditorJS: template.JS(a.editor),
	}

	var buf bytes.Buffer
	if err := a.shell.Execute(&buf, data); err != nil {
		log.Printf("Template execution error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
