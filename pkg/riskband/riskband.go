// Package riskband is the single authoritative mapping from a readmission
// probability to a Low/Medium/High band. The API and the dashboard both
// consume this mapping through the server; nothing else may re-derive it.
package riskband

// Band is a categorical readmission-risk level.
type Band string

const (
	Low    Band = "Low"
	Medium Band = "Medium"
	High   Band = "High"
)

// Threshold boundaries. Lower-inclusive: a probability equal to a boundary
// falls into the higher band.
const (
	MediumThreshold = 0.35
	HighThreshold   = 0.60
)

// FromProbability maps p in [0,1] to a band. p < 0.35 is Low,
// 0.35 <= p < 0.60 is Medium, p >= 0.60 is High.
func FromProbability(p float64) Band {
	switch {
	case p >= HighThreshold:
		return High
	case p >= MediumThreshold:
		return Medium
	default:
		return Low
	}
}
