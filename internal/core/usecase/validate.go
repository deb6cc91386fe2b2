package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

const DefaultMinWords = 5

var DefaultDenylist = []string{"yes", "no", "yes.", "no."}

var errMissingAnswer = errors.New("answer field is missing or not a string")

// Validator turns a raw generation into the final AnswerResult.
// Stages run in a fixed order and the first failing stage decides the refusal reason.
type Validator struct {
	minWords int
	denylist map[string]struct{}
}

func NewValidator(minWords int, denylist []string) *Validator {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	if denylist == nil {
		denylist = DefaultDenylist
	}

	entries := make(map[string]struct{}, len(denylist))
	for _, item := range denylist {
		item = normalizeAnswerText(item)
		if item == "" {
			continue
		}
		entries[item] = struct{}{}
	}
	return &Validator{minWords: minWords, denylist: entries}
}

type parsedAnswer struct {
	Text string
}

// Validate never fails: every rejection is expressed as a refusal.
// Sources are rebuilt from the retrieved passages; whatever the model cited is ignored.
func (v *Validator) Validate(raw string, passages []domain.RetrievedPassage, confidence float64) domain.AnswerResult {
	if isExactRefusal(raw) {
		return domain.Refuse(domain.RefusalModelRefused)
	}

	parsed, err := parseGeneration(raw)
	if err != nil {
		return domain.Refuse(domain.RefusalMalformedOutput)
	}

	if v.isTrivial(parsed.Text) {
		return domain.Refuse(domain.RefusalTrivialAnswer)
	}

	return domain.Grounded(parsed.Text, SourcesOf(passages), ReportedConfidence(confidence))
}

func isExactRefusal(raw string) bool {
	return strings.TrimSpace(raw) == domain.CanonicalRefusal
}

func parseGeneration(raw string) (parsedAnswer, error) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return parsedAnswer{}, errors.New("empty generation")
	}

	var payload struct {
		Answer          json.RawMessage `json:"answer"`
		SourceDocuments json.RawMessage `json:"source_documents"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return parsedAnswer{}, fmt.Errorf("decode generation: %w", err)
	}
	if len(payload.Answer) == 0 {
		return parsedAnswer{}, errMissingAnswer
	}

	// A JSON null decodes into a nil pointer, so null counts as missing.
	var text *string
	if err := json.Unmarshal(payload.Answer, &text); err != nil || text == nil {
		return parsedAnswer{}, errMissingAnswer
	}
	return parsedAnswer{Text: strings.TrimSpace(*text)}, nil
}

// stripCodeFence removes a single surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if newline := strings.IndexByte(inner, '\n'); newline >= 0 {
		lang := strings.TrimSpace(inner[:newline])
		if lang == "" || strings.EqualFold(lang, "json") {
			inner = inner[newline+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func (v *Validator) isTrivial(text string) bool {
	normalized := normalizeAnswerText(text)
	if _, denied := v.denylist[normalized]; denied {
		return true
	}
	return len(strings.Fields(normalized)) < v.minWords
}

func normalizeAnswerText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SourcesOf returns the distinct source names of passages in ascending order.
func SourcesOf(passages []domain.RetrievedPassage) []string {
	seen := make(map[string]struct{}, len(passages))
	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		source := p.Passage.Source
		if source == "" {
			continue
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}
