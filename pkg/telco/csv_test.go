package telco

import (
	"strings"
	"testing"
)

const sample = `customerID,gender,SeniorCitizen,Partner,Dependents,tenure,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges,Churn
7590-VHVEG,Female,0,Yes,No,1,No,No phone service,DSL,No,Yes,No,No,No,No,Month-to-month,Yes,Electronic check,29.85,29.85,No
3668-QPYBK,Male,0,No,No,2,Yes,No,DSL,Yes,Yes,No,No,No,No,Month-to-month,Yes,Mailed check,53.85,108.15,Yes
4472-LVYGI,Female,0,Yes,Yes,0,No,No phone service,DSL,Yes,No,Yes,Yes,Yes,No,Two year,Yes,Bank transfer (automatic),52.55, ,No
`

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("parsed %d records, want 3", len(records))
	}

	first := records[0]
	if first.Customer.CustomerID != "7590-VHVEG" {
		t.Errorf("customer id %q", first.Customer.CustomerID)
	}
	if first.Customer.MonthlyCharges != 29.85 {
		t.Errorf("monthly charges %f", first.Customer.MonthlyCharges)
	}
	if first.Churn != "No" {
		t.Errorf("churn label %q", first.Churn)
	}
	if records[1].Churn != "Yes" {
		t.Errorf("churn label %q", records[1].Churn)
	}
}

func TestParseCoercesBlankTotalCharges(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := records[2].Customer.TotalCharges; got != 0 {
		t.Errorf("blank TotalCharges parsed as %f, want 0", got)
	}
}

func TestParseMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("gender,tenure\nFemale,3\n"))
	if err == nil {
		t.Fatal("expected error for missing customerID column")
	}
}
