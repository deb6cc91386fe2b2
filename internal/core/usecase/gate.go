package usecase

import (
	"math"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

const DefaultConfidenceThreshold = 0.25

// GateDecision is the outcome of the similarity check that runs before generation.
type GateDecision struct {
	Proceed       bool
	Reason        domain.RefusalReason
	MaxSimilarity float64
	// Confidence is MaxSimilarity clamped to [0,1]; it is what gets reported.
	Confidence float64
}

type ConfidenceGate struct {
	threshold float64
}

func NewConfidenceGate(threshold float64) *ConfidenceGate {
	return &ConfidenceGate{threshold: threshold}
}

func (g *ConfidenceGate) Threshold() float64 {
	return g.threshold
}

// Evaluate compares the raw maximum similarity with the threshold.
// Clamping only affects the reported confidence, never the decision.
func (g *ConfidenceGate) Evaluate(passages []domain.RetrievedPassage) GateDecision {
	if len(passages) == 0 {
		return GateDecision{Reason: domain.RefusalNoEvidence}
	}

	maxSimilarity := math.Inf(-1)
	for _, p := range passages {
		if p.Similarity > maxSimilarity {
			maxSimilarity = p.Similarity
		}
	}
	if math.IsInf(maxSimilarity, -1) {
		// every score was NaN
		return GateDecision{Reason: domain.RefusalLowConfidence}
	}

	decision := GateDecision{
		MaxSimilarity: maxSimilarity,
		Confidence:    clampUnit(maxSimilarity),
	}
	if maxSimilarity < g.threshold {
		decision.Reason = domain.RefusalLowConfidence
		return decision
	}
	decision.Proceed = true
	return decision
}

// ReportedConfidence is the confidence attached to answers: clamp to [0,1], two decimals.
func ReportedConfidence(similarity float64) float64 {
	return roundTo2(clampUnit(similarity))
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
