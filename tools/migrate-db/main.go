// migrate-db applies the schema migrations and optionally seeds the
// users table from the historical dataset.
//
// Usage:
//
//	migrate-db [-migrations dir] [-seed dataset.csv] [up|down|status]
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"churnpulse/pkg/telco"
)

func main() {
	migrationsDir := flag.String("migrations", "migrations", "directory holding migration files")
	seedPath := flag.String("seed", "", "dataset CSV to seed the users table from")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	m, err := migrate.New("file://"+*migrationsDir, dbURL)
	if err != nil {
		log.Fatalf("Failed to init migrations: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Migrations rolled back")
	case "status":
		version, dirty, err := m.Version()
		if err != nil && err != migrate.ErrNilVersion {
			log.Fatalf("Failed to read version: %v", err)
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return
	default:
		log.Fatalf("Unknown command %q (want up, down, or status)", command)
	}

	if *seedPath != "" {
		if err := seed(dbURL, *seedPath); err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
	}
}

// seed bulk-inserts the dataset into users, skipping ids already
// present so reseeding never clobbers simulated state.
func seed(dbURL, path string) error {
	records, err := telco.LoadFile(path)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d records from %s", len(records), path)

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO users (customerID, gender, SeniorCitizen, Partner, Dependents,
			tenure, PhoneService, MultipleLines, InternetService, OnlineSecurity,
			OnlineBackup, DeviceProtection, TechSupport, StreamingTV, StreamingMovies,
			Contract, PaperlessBilling, PaymentMethod, MonthlyCharges, TotalCharges)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (customerID) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare seed insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		c := r.Customer
		if _, err := stmt.Exec(c.CustomerID, c.Gender, c.SeniorCitizen, c.Partner,
			c.Dependents, c.Tenure, c.PhoneService, c.MultipleLines,
			c.InternetService, c.OnlineSecurity, c.OnlineBackup,
			c.DeviceProtection, c.TechSupport, c.StreamingTV, c.StreamingMovies,
			c.Contract, c.PaperlessBilling, c.PaymentMethod,
			c.MonthlyCharges, c.TotalCharges); err != nil {
			return fmt.Errorf("seed %s: %w", c.CustomerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	log.Printf("Seeded %d customers", len(records))
	return nil
}
