package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

type Synthesizer struct {
	generator ports.TextGenerator
	timeout   time.Duration
}

func NewSynthesizer(generator ports.TextGenerator, timeout time.Duration) *Synthesizer {
	return &Synthesizer{generator: generator, timeout: timeout}
}

// Synthesize asks the model for one candidate answer. The raw text is returned untouched;
// all trust decisions belong to the Validator.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, passages []domain.RetrievedPassage) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.generator.Generate(ctx, BuildAnswerPrompt(question, passages))
	if err != nil {
		return "", domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}
	return raw, nil
}
