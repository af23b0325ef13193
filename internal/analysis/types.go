// Package analysis provides the wire types and HTTP client for the remote
// CSV analysis service. The service parses uploaded CSV content, detects
// financial columns, and computes KPIs; this package only speaks its
// contract and never inspects CSV data itself.
package analysis

// KPISet holds the five fixed financial metrics the service computes.
// Monetary values are absolute magnitudes; MargeNette is a percentage
// scale value (15 means 15%).
type KPISet struct {
	RevenusTotaux float64 `json:"revenus_totaux"`
	Ebitda        float64 `json:"ebitda"`
	ResultatNet   float64 `json:"resultat_net"`
	FreeCashFlow  float64 `json:"free_cash_flow"`
	MargeNette    float64 `json:"marge_nette"`
}

// Result is the analysis service's response to a CSV upload.
// The service validates the payload before responding; a decoded Result is
// trusted as-is and rendered without further structural checks.
type Result struct {
	// ID is assigned by the service for its own storage. Kept for
	// diagnostics, not used by the UI.
	ID string `json:"id,omitempty"`

	Filename string `json:"filename"`

	// DetectedColumns maps a semantic financial role (e.g. "revenus") to
	// the CSV column name the service matched it to.
	DetectedColumns map[string]string `json:"detected_columns"`

	KPIs KPISet `json:"kpis"`

	// DataPreview holds the first rows of the parsed file, each row a
	// column→value mapping with a uniform key set.
	DataPreview []map[string]any `json:"data_preview"`
}
