package domain

import (
	"fmt"
	"math"
	"strings"
)

// CanonicalRefusal is the only text an end user sees when the system declines to answer.
const CanonicalRefusal = "The provided documents do not contain this information."

type Outcome string

const (
	OutcomeAnswer  Outcome = "answer"
	OutcomeRefusal Outcome = "refusal"
)

type RefusalReason string

const (
	RefusalNoEvidence      RefusalReason = "no_evidence"
	RefusalLowConfidence   RefusalReason = "low_confidence"
	RefusalModelRefused    RefusalReason = "model_refused"
	RefusalMalformedOutput RefusalReason = "malformed_output"
	RefusalTrivialAnswer   RefusalReason = "trivial_answer"
)

// AnswerResult is either a refusal with a reason or a grounded answer.
// Text, Sources and Confidence are only meaningful when Outcome is OutcomeAnswer.
type AnswerResult struct {
	Outcome    Outcome
	Reason     RefusalReason
	Text       string
	Sources    []string
	Confidence float64
}

func Refuse(reason RefusalReason) AnswerResult {
	return AnswerResult{Outcome: OutcomeRefusal, Reason: reason}
}

func Grounded(text string, sources []string, confidence float64) AnswerResult {
	if sources == nil {
		sources = []string{}
	}
	return AnswerResult{
		Outcome:    OutcomeAnswer,
		Text:       text,
		Sources:    sources,
		Confidence: confidence,
	}
}

func (r AnswerResult) IsRefusal() bool {
	return r.Outcome == OutcomeRefusal
}

// DisplayText is what a user-facing surface prints: the answer or the canonical refusal.
func (r AnswerResult) DisplayText() string {
	if r.IsRefusal() {
		return CanonicalRefusal
	}
	return r.Text
}

// ConfidencePercent rounds Confidence to a whole percentage.
func (r AnswerResult) ConfidencePercent() int {
	return int(math.Round(r.Confidence * 100))
}

// PlainText renders the result without styling. The command line and MCP
// surfaces both print this form; a refusal is only the canonical sentence.
func (r AnswerResult) PlainText() string {
	if r.IsRefusal() {
		return CanonicalRefusal
	}

	var b strings.Builder
	b.WriteString(r.Text)
	b.WriteString("\n\n")
	if len(r.Sources) > 0 {
		b.WriteString("Sources:\n")
		for _, source := range r.Sources {
			b.WriteString("- " + source + "\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Confidence: %d%%", r.ConfidencePercent())
	return b.String()
}
