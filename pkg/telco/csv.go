// Package telco reads the historical customer dataset used to seed the
// state store and backfill initial scores. The file is the standard
// telco churn CSV with one header row.
package telco

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"churnpulse/pkg/churn"
)

// Record is one dataset row: the customer attributes plus the labelled
// churn outcome, which the pipeline itself never uses.
type Record struct {
	Customer churn.Customer
	Churn    string
}

// LoadFile reads and parses a dataset file.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads dataset rows from r. Blank or malformed TotalCharges
// values are coerced to 0, matching how the table was originally seeded.
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"customerID", "tenure", "MonthlyCharges", "TotalCharges"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("dataset missing column %q", required)
		}
	}

	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		tenure, err := strconv.Atoi(get(row, "tenure"))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad tenure: %w", line, err)
		}
		senior, _ := strconv.Atoi(get(row, "SeniorCitizen"))
		monthly, err := strconv.ParseFloat(get(row, "MonthlyCharges"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad MonthlyCharges: %w", line, err)
		}
		total, err := strconv.ParseFloat(get(row, "TotalCharges"), 64)
		if err != nil {
			total = 0
		}

		records = append(records, Record{
			Customer: churn.Customer{
				CustomerID:       get(row, "customerID"),
				Gender:           get(row, "gender"),
				SeniorCitizen:    senior,
				Partner:          get(row, "Partner"),
				Dependents:       get(row, "Dependents"),
				Tenure:           tenure,
				PhoneService:     get(row, "PhoneService"),
				MultipleLines:    get(row, "MultipleLines"),
				InternetService:  get(row, "InternetService"),
				OnlineSecurity:   get(row, "OnlineSecurity"),
				OnlineBackup:     get(row, "OnlineBackup"),
				DeviceProtection: get(row, "DeviceProtection"),
				TechSupport:      get(row, "TechSupport"),
				StreamingTV:      get(row, "StreamingTV"),
				StreamingMovies:  get(row, "StreamingMovies"),
				Contract:         get(row, "Contract"),
				PaperlessBilling: get(row, "PaperlessBilling"),
				PaymentMethod:    get(row, "PaymentMethod"),
				MonthlyCharges:   monthly,
				TotalCharges:     total,
			},
			Churn: get(row, "Churn"),
		})
	}
	return records, nil
}
