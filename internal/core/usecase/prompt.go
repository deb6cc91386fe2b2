package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

// BuildAnswerPrompt renders the strict-format instruction sent to the language model.
func BuildAnswerPrompt(question string, passages []domain.RetrievedPassage) string {
	var contextBuilder strings.Builder
	for idx, p := range passages {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] source=%s\n%s\n\n",
			idx+1,
			p.Passage.Source,
			strings.TrimSpace(p.Passage.Text),
		))
	}

	return fmt.Sprintf(`You answer questions about company policies.

Rules you must follow:
- Use only the context below. Do not use outside knowledge and do not add suggestions.
- Never reply with only "yes", "no" or any single word. Explain the policy in a complete sentence.
- If the context does not explicitly state the answer, reply with exactly this sentence and nothing else:
%s

Output format when answering: a single JSON object and nothing else, no markdown:
{"answer": "<complete sentence grounded in the context>", "source_documents": ["<source file names used>"]}

Context:
%s
Question:
%s
`, domain.CanonicalRefusal, contextBuilder.String(), strings.TrimSpace(question))
}
