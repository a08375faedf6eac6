package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vetgrid.org/internal/approval"
	"vetgrid.org/internal/notify"
	"vetgrid.org/internal/obs"
	"vetgrid.org/internal/rbac"
	"vetgrid.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	obs.Init()

	addr := envOr("VETGRID_HTTP_ADDR", ":8080")
	sweepEvery := envDuration("VETGRID_SWEEP_INTERVAL", time.Hour)

	var (
		resources approval.ResourceRegistry
		roleStore rbac.Store
		pgStore   *pg.Store
	)
	if dsn := os.Getenv("VETGRID_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		resources, roleStore = pgStore, pgStore
	} else {
		log.Println("VETGRID_PG_DSN not set, using in-memory stores")
		resources = approval.NewMemoryStore()
		roleStore = rbac.NewMemoryStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := roleStore.EnsurePermissions(ctx, rbac.BuiltinPermissions); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}

	var sink notify.Sink = notify.LogSink{}
	if pgStore != nil {
		sink = pgStore
	}
	queue, err := notify.NewQueue(sink)
	if err != nil {
		log.Fatalf("notify queue: %v", err)
	}

	scanner, err := approval.NewScanner(resources, queue)
	if err != nil {
		log.Fatalf("scanner: %v", err)
	}

	go runSweeper(ctx, scanner, sweepEvery)

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if pgStore != nil {
			if err := pgStore.DB().PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting vetgrid-engine %s on %s (sweep every %s)", version, addr, sweepEvery)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	queue.Close()
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

func runSweeper(ctx context.Context, scanner *approval.Scanner, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := scanner.Sweep(ctx)
			if err != nil {
				obs.LogEvent(map[string]any{
					"level": "error", "msg": "sweep failed", "error": err.Error(),
				})
				continue
			}
			obs.LogEvent(map[string]any{
				"level": "info", "msg": "sweep completed",
				"clinics": res.ClinicsTransitioned,
				"stores":  res.StoresTransitioned,
			})
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("parse %s: %v", key, err)
	}
	return d
}
