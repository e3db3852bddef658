package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"
)

const (
	// portRetries bounds the bind-conflict fallback: the requested port plus
	// this many successors are tried before giving up.
	portRetries = 5

	shutdownGrace  = 5 * time.Second
	forcedExitWait = 8 * time.Second
)

var (
	// Build info (set via ldflags)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	port        = flag.Int("port", 4810, "Port to serve on")
	openBrowser = flag.Bool("browser", true, "Open browser automatically")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("docsight %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	root := ".claude"
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	a, err := newApp(root)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	router, err := newWatchRouter(a.root, artifactFolders, debounceWindow, func(file string) {
		a.hub.broadcast(reloadEvent(file))
	})
	if err != nil {
		log.Printf("Warning: live reload unavailable: %v", err)
	} else {
		a.router = router
	}

	ln, boundPort, err := listenWithFallback(*port)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	server := &http.Server{
		Handler:     a.routes(),
		ReadTimeout: 15 * time.Second,
		// WriteTimeout intentionally omitted: /events streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigint
		log.Println("Shutting down gracefully...")

		// Backstop: if graceful close stalls, exit anyway. Bounded shutdown
		// latency is part of the contract.
		time.AfterFunc(forcedExitWait, func() {
			log.Println("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		})

		a.shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	url := fmt.Sprintf("http://localhost:%d", boundPort)
	fmt.Printf("docsight serving %s at %s\n", a.root, url)
	fmt.Println("Press Ctrl+C to quit")

	if *openBrowser {
		go func() {
			time.Sleep(500 * time.Millisecond)
			openURL(url)
		}()
	}

	if err := server.Serve(ln); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// listenWithFallback binds the requested port, stepping to the next one on
// bind conflicts up to portRetries times.
func listenWithFallback(requested int) (net.Listener, int, error) {
	for i := 0; i <= portRetries; i++ {
		p := requested + i
		ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", p))
		if err == nil {
			if i > 0 {
				log.Printf("Port %d busy, using %d", requested, p)
			}
			return ln, p, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, 0, err
		}
	}
	return nil, 0, fmt.Errorf("no free port in %d-%d", requested, requested+portRetries)
}

func openURL(url string) {
	var cmd string
	var args []string

	switch {
	case fileExists("/usr/bin/open"): // macOS
		cmd = "open"
		args = []string{url}
	case fileExists("/usr/bin/xdg-open"): // Linux
		cmd = "xdg-open"
		args = []string{url}
	default: // Windows
		cmd = "cmd"
		args = []string{"/c", "start", url}
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		log.Printf("Failed to open URL %s: %v", url, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
