package analytics

// RiskThreshold is the savings ratio below which a user is flagged.
const RiskThreshold = 0.05

// RiskStatus is the outcome of the savings-ratio rule.
type RiskStatus string

const (
	HighRisk RiskStatus = "HighRisk"
	Nominal  RiskStatus = "Nominal"
	NoData   RiskStatus = "NoData"
)

// EvaluateRisk applies the threshold rule to a summary. summaryErr is the
// error Summarize returned, if any; any error yields NoData, as does a
// summary without income.
func EvaluateRisk(summary Summary, summaryErr error) RiskStatus {
	if summaryErr != nil {
		return NoData
	}
	ratio, err := summary.Ratio()
	if err != nil {
		return NoData
	}
	if ratio < RiskThreshold {
		return HighRisk
	}
	return Nominal
}
