// mediagen/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mediagen/api"
	"mediagen/archive"
	"mediagen/config"
	"mediagen/provider"
	"mediagen/task"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Build the provider registry from configured endpoints
	providers := provider.NewRegistryFromConfig(cfg)
	if len(providers.Kinds()) == 0 {
		log.Fatal("No generation providers configured; set at least one base URL")
	}

	// 3. Persistence sink (best-effort archive of finished results)
	var sink task.Sink
	if cfg.ArchiveURL != "" {
		sink = archive.NewHTTPSink(cfg)
	} else {
		log.Println("No archive endpoint configured; generated assets will not be stored durably")
		sink = archive.NopSink{}
	}

	// 4. Task manager owns the registry and every task's poll loop
	manager, err := task.NewManager(cfg, providers, sink)
	if err != nil {
		log.Fatalf("Failed to initialize task manager: %v", err)
	}

	// 5. Set up router and server
	router := api.SetupRouter(manager, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 6. Start background services and HTTP server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 7. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
