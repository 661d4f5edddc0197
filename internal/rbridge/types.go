// Package rbridge implements the subprocess bridge to the R netmeta package.
// Each operation renders an R script, runs it through a non-interactive R
// process, and decodes the single JSON document the script prints to stdout.
// The fitted analysis object is persisted as an RDS file so that follow-up
// queries (league table, ranking, forest data) reuse the last analysis
// without recomputing it.
package rbridge

// PairwiseContrast is one study's direct comparison of two treatments,
// summarized as a treatment effect (TE) and its standard error (seTE).
type PairwiseContrast struct {
	Study  string  `json:"study"`
	Treat1 string  `json:"treat1"`
	Treat2 string  `json:"treat2"`
	TE     float64 `json:"TE"`
	SeTE   float64 `json:"seTE"`
}

// ArmRecord is one treatment arm within one study. Binary outcomes use
// Events/N, continuous outcomes use Mean/SD/N. Pointer fields stay nil for
// the form that does not apply so the params JSON only carries the columns
// the R pairwise() call needs.
type ArmRecord struct {
	Study     string   `json:"study"`
	Treatment string   `json:"treatment"`
	N         int      `json:"n"`
	Events    *int     `json:"events,omitempty"`
	Mean      *float64 `json:"mean,omitempty"`
	SD        *float64 `json:"sd,omitempty"`
}

// Summary measures accepted by runnetmeta.
const (
	SummaryOddsRatio      = "OR"
	SummaryRiskRatio      = "RR"
	SummaryRiskDifference = "RD"
	SummaryMeanDifference = "MD"
	SummaryStdMeanDiff    = "SMD"
)

// Outcome types accepted by the arm-to-pairwise conversion.
const (
	OutcomeBinary     = "binary"
	OutcomeContinuous = "continuous"
)

// ValidSummaryMeasure reports whether sm is one of the supported summary
// measures.
func ValidSummaryMeasure(sm string) bool {
	switch sm {
	case SummaryOddsRatio, SummaryRiskRatio, SummaryRiskDifference,
		SummaryMeanDifference, SummaryStdMeanDiff:
		return true
	}
	return false
}
