// backfill scores every customer in the historical dataset once and
// bulk-inserts the results into the predictions table, giving each
// customer an initial score before the live pipeline takes over.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"churnpulse/pkg/model"
	"churnpulse/pkg/store"
	"churnpulse/pkg/telco"
)

func main() {
	modelPath := flag.String("model", "", "path to the model artifact")
	dataPath := flag.String("data", "", "path to the dataset CSV")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}
	if *modelPath == "" || *dataPath == "" {
		log.Fatalf("both -model and -data are required")
	}

	m, err := model.Load(*modelPath)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	if err := model.ValidateMapping(m); err != nil {
		log.Fatalf("Model/schema mapping mismatch: %v", err)
	}

	records, err := telco.LoadFile(*dataPath)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Printf("Scoring %d customers", len(records))

	scores := make(map[string]float64, len(records))
	for i := range records {
		c := records[i].Customer
		p, err := m.Score(model.BuildVector(&c))
		if err != nil {
			log.Fatalf("Failed to score %s: %v", c.CustomerID, err)
		}
		scores[c.CustomerID] = p
	}

	st, err := store.Open(dbURL)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := st.BulkInsertPredictions(ctx, scores, time.Now()); err != nil {
		log.Fatalf("Backfill insert failed: %v", err)
	}
	log.Printf("Backfilled %d predictions", len(scores))
}
