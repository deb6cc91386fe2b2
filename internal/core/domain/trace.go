package domain

import "time"

// AnswerTrace records how one query was decided. It feeds metrics and the audit trail
// and never influences later decisions.
type AnswerTrace struct {
	ID                 string        `json:"id"`
	RequestID          string        `json:"request_id,omitempty"`
	Query              string        `json:"query"`
	Outcome            string        `json:"outcome"`
	Reason             RefusalReason `json:"reason,omitempty"`
	ErrorKind          string        `json:"error_kind,omitempty"`
	Error              string        `json:"error,omitempty"`
	MaxSimilarity      float64       `json:"max_similarity"`
	Confidence         float64       `json:"confidence"`
	Retrieved          int           `json:"retrieved"`
	Sources            []string      `json:"sources"`
	SynthesizerCalled  bool          `json:"synthesizer_called"`
	RetrievalDuration  time.Duration `json:"retrieval_duration"`
	GenerationDuration time.Duration `json:"generation_duration"`
	TotalDuration      time.Duration `json:"total_duration"`
	CreatedAt          time.Time     `json:"created_at"`
}

// OutcomeError labels traces of queries that ended in an infrastructure or input error.
const OutcomeError = "error"
