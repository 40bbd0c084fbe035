package main

import (
	"context"
	"log"

	"subsea-agent-be/internal/bootstrap"
	"subsea-agent-be/internal/config"
	"subsea-agent-be/internal/server"
	"subsea-agent-be/internal/tracer"
	"subsea-agent-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer func() {
		_ = container.Logger.Sync()
		if container.NatsPublisher != nil {
			container.NatsPublisher.Close()
		}
	}()

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Ingest Consumer...")
		if err := container.IngestService.Consume(context.Background()); err != nil {
			log.Printf("Background Ingest Consumer Error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
