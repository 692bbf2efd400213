package main

import (
	"database/sql"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"fulfillment-sync-service/internal/adapters/repositories"
	"fulfillment-sync-service/internal/config"
	"fulfillment-sync-service/internal/platform/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	database, driver, err := openDatabase()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/tenants.json")
	if err := initAndSeed(database, driver, seedPath); err != nil {
		log.Fatal(err)
	}
}

func openDatabase() (*sql.DB, string, error) {
	if databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); databaseURL != "" {
		d, err := db.Open("pgx", databaseURL)
		return d, "pgx", err
	}
	d, err := db.Open("sqlite", config.Get("DB_PATH", "data/sync.db"))
	return d, "sqlite", err
}

func initAndSeed(database *sql.DB, driver, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(database, driver); err != nil {
		return err
	}
	log.Println("Schema ready.")

	log.Println("Seeding tenants...")
	store := repositories.NewSQLStore(database, driver)
	if err := repositories.SeedTenantsFromJSON(store, seedPath); err != nil {
		return err
	}
	log.Println("Seeding complete.")

	return nil
}
