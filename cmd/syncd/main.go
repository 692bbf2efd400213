package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"fulfillment-sync-service/internal/adapters/cache"
	"fulfillment-sync-service/internal/adapters/repositories"
	"fulfillment-sync-service/internal/adapters/upstream"
	"fulfillment-sync-service/internal/config"
	"fulfillment-sync-service/internal/domain"
	"fulfillment-sync-service/internal/platform/db"
	"fulfillment-sync-service/internal/ports"
	"fulfillment-sync-service/internal/services"
)

// main is the application composition root. Each process run is one
// bounded sync invocation; scheduling is external (cron or similar).
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	apiBase := config.Get("UPSTREAM_API_URL", "https://api.fulfillment.example.com")

	database, driver, err := openDatabase()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	store := repositories.NewSQLStore(database, driver)
	if err := repositories.InitSchema(database, driver); err != nil {
		log.Fatal(err)
	}
	tenants := repositories.NewSQLTenantSource(store)

	watermarks := openWatermarks()
	routes := loadFeeRoutes()
	window, err := resolveWindow()
	if err != nil {
		log.Fatal(err)
	}

	syncer := services.NewSyncer(
		store,
		tenants,
		upstream.Factory(apiBase, nil),
		watermarks,
		routes,
		services.SyncerConfig{},
	)

	report := syncer.Run(context.Background(), window)
	logReport(report, window)

	if report.Failed() {
		os.Exit(1)
	}
}

func openDatabase() (*sql.DB, string, error) {
	if databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); databaseURL != "" {
		d, err := db.Open("pgx", databaseURL)
		return d, "pgx", err
	}

	// Local runs fall back to sqlite.
	d, err := db.Open("sqlite", config.Get("DB_PATH", "data/sync.db"))
	return d, "sqlite", err
}

func openWatermarks() ports.PollWatermarks {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		log.Println("REDIS_ADDR not set; using in-memory poll watermarks")
		return cache.NewMemoryPollWatermarks()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return cache.NewRedisPollWatermarks(client, 0)
}

func loadFeeRoutes() *services.FeeRoutes {
	path := strings.TrimSpace(os.Getenv("FEE_ROUTES_PATH"))
	if path == "" {
		log.Println("FEE_ROUTES_PATH not set; using default fee routing")
		return services.DefaultFeeRoutes()
	}
	routes, err := services.LoadFeeRoutes(path)
	if err != nil {
		log.Fatal(err)
	}
	return routes
}

// resolveWindow picks the tagged sync window once, at startup: full
// syncs filter by creation date over days, incremental syncs by
// modification date over minutes.
func resolveWindow() (domain.SyncWindow, error) {
	mode := config.Get("SYNC_MODE", "full")
	now := time.Now().UTC()

	switch mode {
	case "full":
		days, err := strconv.Atoi(config.Get("SYNC_DAYS", "30"))
		if err != nil || days <= 0 {
			return domain.SyncWindow{}, fmt.Errorf("resolve window: invalid SYNC_DAYS: %q", config.Get("SYNC_DAYS", "30"))
		}
		return domain.CreationWindow(days, now), nil
	case "incremental":
		minutes, err := strconv.Atoi(config.Get("SYNC_MINUTES", "60"))
		if err != nil || minutes <= 0 {
			return domain.SyncWindow{}, fmt.Errorf("resolve window: invalid SYNC_MINUTES: %q", config.Get("SYNC_MINUTES", "60"))
		}
		return domain.ModificationWindow(minutes, now), nil
	}
	return domain.SyncWindow{}, fmt.Errorf("resolve window: unknown SYNC_MODE %q", mode)
}

func logReport(report *domain.RunReport, window domain.SyncWindow) {
	log.Printf("run=%s mode=%s window_start=%s window_end=%s tenants=%d attributed=%d unattributed=%d failed=%t",
		report.RunID, window.Mode, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339),
		len(report.Tenants), report.TransactionsAttributed, report.TransactionsUnattributed, report.Failed(),
	)
	for i := range report.Tenants {
		t := &report.Tenants[i]
		if t.Skipped {
			log.Printf("tenant=%d skipped=true (checkpoint inside sync interval)", t.TenantID)
			continue
		}
		log.Printf(
			"tenant=%d orders=%d/%d shipments=%d/%d deleted=%d restored=%d polled=%d skipped=%d tx=%d attributed=%d errs=%d",
			t.TenantID,
			t.Orders.Upserted, t.Orders.Found,
			t.Shipments.Upserted, t.Shipments.Found,
			t.Orders.Deleted+t.Shipments.Deleted,
			t.Orders.Restored+t.Shipments.Restored,
			t.TimelinePolled, t.TimelineSkipped,
			t.TransactionsFound, t.TransactionsAttributed,
			len(t.Errors),
		)
		for _, e := range t.Errors {
			log.Printf("tenant=%d error=%q", t.TenantID, e)
		}
	}
	for _, e := range report.Errors {
		log.Printf("run=%s error=%q", report.RunID, e)
	}
}
