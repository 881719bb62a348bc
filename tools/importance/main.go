// importance produces a feature-importance report for the loaded model:
// for each feature it measures how much that feature's contribution to
// the decision function varies across the historical dataset. The JSON
// report feeds the dashboard's "what drives churn" panel.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"os"
	"sort"
	"time"

	"churnpulse/pkg/model"
	"churnpulse/pkg/telco"
)

type featureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type report struct {
	ModelID     string              `json:"model_id"`
	Version     string              `json:"version"`
	GeneratedAt time.Time           `json:"generated_at"`
	SampleCount int                 `json:"sample_count"`
	Features    []featureImportance `json:"features"`
}

func main() {
	modelPath := flag.String("model", "", "path to the model artifact")
	dataPath := flag.String("data", "", "path to the dataset CSV")
	outPath := flag.String("out", "feature_importance.json", "report output path")
	flag.Parse()

	if *modelPath == "" || *dataPath == "" {
		log.Fatalf("both -model and -data are required")
	}

	m, err := model.Load(*modelPath)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	records, err := telco.LoadFile(*dataPath)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("Dataset is empty")
	}

	contributions := map[string][]float64{}
	for i := range records {
		fv := model.BuildVector(&records[i].Customer)
		for name, contrib := range m.Contributions(fv) {
			contributions[name] = append(contributions[name], contrib)
		}
	}

	rep := report{
		ModelID:     m.ModelID,
		Version:     m.Version,
		GeneratedAt: time.Now(),
		SampleCount: len(records),
	}
	for name, vals := range contributions {
		rep.Features = append(rep.Features, featureImportance{
			Feature:    name,
			Importance: meanAbsDeviation(vals),
		})
	}
	sort.Slice(rep.Features, func(i, j int) bool {
		return rep.Features[i].Importance > rep.Features[j].Importance
	})

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}
	if err := os.WriteFile(*outPath, out, 0644); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	log.Printf("Wrote %s (%d features over %d samples)", *outPath, len(rep.Features), rep.SampleCount)
}

// meanAbsDeviation is the average distance of values from their mean,
// the spread of one feature's contribution to the decision function.
func meanAbsDeviation(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var dev float64
	for _, v := range vals {
		dev += math.Abs(v - mean)
	}
	return dev / float64(len(vals))
}
