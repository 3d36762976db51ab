package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"medeasy/rx/internal/api"
	"medeasy/rx/internal/config"
	"medeasy/rx/internal/database"
	"medeasy/rx/internal/events"
	"medeasy/rx/internal/migrations"
	"medeasy/rx/internal/repository"
	"medeasy/rx/internal/seed"
	"medeasy/rx/internal/service"
	"medeasy/rx/internal/telemetry"
	"medeasy/rx/internal/vision"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("telemetry error: %v", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		log.Fatalf("%v", err)
	}

	users := repository.NewUserRepository(db)
	pharmacies := repository.NewPharmacyRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	stock := repository.NewStockRepository(db)
	requests := repository.NewRequestRepository(db)

	if cfg.CatalogCSV != "" {
		if _, err := seed.LoadCatalog(ctx, catalogRepo, cfg.CatalogCSV); err != nil {
			log.Printf("catalog seed skipped: %v", err)
		}
	}

	accounts := service.NewAccountService(users, pharmacies)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("admin bootstrap error: %v", err)
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Printf("publishing prescription events to %s", cfg.KafkaTopic)
	}
	defer publisher.Close()

	rx := service.NewPrescriptionService(requests, stock, pharmacies, analyzer(cfg), publisher, service.PrescriptionOptions{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		VisionTimeout:       cfg.VisionTimeout,
	})
	handler := api.New(accounts, service.NewCatalogService(catalogRepo, stock), rx, cfg.Secret, cfg.CORSOrigins)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: handler.Router()}
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Printf("MedEasy Rx server starting on :%s", cfg.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// analyzer picks the vision client. It returns a nil interface when no
// provider is configured so requests skip automatic reading.
func analyzer(cfg config.Config) vision.Analyzer {
	switch cfg.VisionProvider {
	case "http":
		if cfg.VisionURL == "" {
			log.Printf("VISION_PROVIDER=http without VISION_URL; automatic reading disabled")
			return nil
		}
		return vision.NewHTTPAnalyzer(cfg.VisionURL, cfg.VisionTimeout)
	case "anthropic":
		a, err := vision.NewAnthropicAnalyzer(cfg.AnthropicAPIKey)
		if err != nil {
			log.Printf("anthropic vision unavailable: %v; automatic reading disabled", err)
			return nil
		}
		return a
	case "":
		return nil
	default:
		log.Printf("unknown VISION_PROVIDER %q; automatic reading disabled", cfg.VisionProvider)
		return nil
	}
}
