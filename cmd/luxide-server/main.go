// Command luxide-server runs the Luxide control plane: the HTTP surface
// backed by the render manager and a configurable storage backend. Flags
// and env vars select the runtime options (listen address, storage
// backend, worker count); there is deliberately no config file layer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/paulwrubel/luxide/auth"
	"github.com/paulwrubel/luxide/httpapi"
	"github.com/paulwrubel/luxide/manager"
	"github.com/paulwrubel/luxide/renderstore"
	"github.com/paulwrubel/luxide/sceneconfig"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", envOr("LUXIDE_ADDR", ":8080"), "HTTP listen address")
	backend := flag.String("backend", envOr("LUXIDE_BACKEND", "memory"), "storage backend: memory|filesystem|sql")
	dataDir := flag.String("data-dir", envOr("LUXIDE_DATA_DIR", "./luxide-data"), "filesystem backend root directory")
	dsn := flag.String("dsn", envOr("LUXIDE_SQLITE_DSN", "./luxide.sqlite"), "sql backend data source name")
	workers := flag.Int("workers", envIntOr("LUXIDE_WORKERS", runtime.GOMAXPROCS(0)), "tracer worker pool size")
	flag.Parse()

	store, closeStore, err := openStore(*backend, *dataDir, *dsn)
	if err != nil {
		log.Printf("opening %s storage backend: %v", *backend, err)
		return 1
	}
	defer closeStore()

	mgr := manager.New(store, *workers, sceneconfig.Assets{})
	mgr.Start()
	defer mgr.Stop()

	server := httpapi.NewServer(mgr, auth.Bearer{})
	httpServer := &http.Server{Addr: *addr, Handler: server}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("luxide-server listening on %s (backend=%s, workers=%d)", *addr, *backend, *workers)
		serveErr <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
			return 1
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("http server shutdown: %v", err)
			return 1
		}
	}
	return 0
}

func openStore(backend, dataDir, dsn string) (renderstore.Store, func(), error) {
	switch backend {
	case "memory":
		return renderstore.NewMemory(), func() {}, nil
	case "filesystem":
		fs, err := renderstore.NewFilesystem(dataDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	case "sql":
		s, err := renderstore.OpenSQL(dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}
