package usecase

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

func TestValidatorExactRefusal(t *testing.T) {
	v := NewValidator(DefaultMinWords, DefaultDenylist)
	passages := []domain.RetrievedPassage{retrieved("returns.txt", 0.7)}

	for _, raw := range []string{
		domain.CanonicalRefusal,
		"  " + domain.CanonicalRefusal + "\n",
	} {
		result := v.Validate(raw, passages, 0.7)
		if result.Outcome != domain.OutcomeRefusal || result.Reason != domain.RefusalModelRefused {
			t.Fatalf("Validate(%q) = %+v, want model_refused", raw, result)
		}
	}
}

func TestValidatorRefusalVariantsAreNotExact(t *testing.T) {
	v := NewValidator(DefaultMinWords, DefaultDenylist)
	passages := []domain.RetrievedPassage{retrieved("returns.txt", 0.7)}

	for _, raw := range []string{
		`"` + domain.CanonicalRefusal + `"`,
		"The provided documents do not contain this information",
		"Sorry. " + domain.CanonicalRefusal,
	} {
		result := v.Validate(raw, passages, 0.7)
		if result.Reason != domain.RefusalMalformedOutput {
			t.Fatalf("Validate(%q) reason = %q, want malformed_output", raw, result.Reason)
		}
	}
}

func TestValidatorMalformedOutput(t *testing.T) {
	v := NewValidator(DefaultMinWords, DefaultDenylist)
	passages := []domain.RetrievedPassage{retrieved("returns.txt", 0.7)}

	tests := []struct {
		name string
		raw  string
	}{
		{name: "prose", raw: "Refunds take five to seven business days."},
		{name: "empty", raw: "   "},
		{name: "array", raw: `["Refunds take five to seven business days."]`},
		{name: "missing answer", raw: `{"source_documents": ["returns.txt"]}`},
		{name: "answer not string", raw: `{"answer": 7}`},
		{name: "answer null", raw: `{"answer": null}`},
		{name: "trailing text", raw: `{"answer": "Refunds take five to seven business days."} thanks`},
		{name: "truncated", raw: `{"answer": "Refunds take`},
		{name: "foreign fence", raw: "```yaml\nanswer: Refunds take five to seven business days.\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.raw, passages, 0.7)
			if result.Outcome != domain.OutcomeRefusal || result.Reason != domain.RefusalMalformedOutput {
				t.Fatalf("Validate() = %+v, want malformed_output", result)
			}
		})
	}
}

func TestValidatorTrivialAnswer(t *testing.T) {
	v := NewValidator(DefaultMinWords, DefaultDenylist)
	passages := []domain.RetrievedPassage{retrieved("returns.txt", 0.7)}

	for _, answer := range []string{"yes", "No.", "  YES  ", "", "Refunds take five days."} {
		raw := `{"answer": "` + answer + `", "source_documents": ["returns.txt"]}`
		result := v.Validate(raw, passages, 0.7)
		if result.Outcome != domain.OutcomeRefusal || result.Reason != domain.RefusalTrivialAnswer {
			t.Fatalf("answer %q: got %+v, want trivial_answer", answer, result)
		}
	}
}

func TestValidatorCustomDenylist(t *testing.T) {
	v := NewValidator(1, []string{"Maybe"})
	result := v.Validate(`{"answer": "maybe"}`, []domain.RetrievedPassage{retrieved("a.txt", 0.5)}, 0.5)
	if result.Reason != domain.RefusalTrivialAnswer {
		t.Fatalf("reason = %q, want trivial_answer", result.Reason)
	}

	result = v.Validate(`{"answer": "Yes"}`, []domain.RetrievedPassage{retrieved("a.txt", 0.5)}, 0.5)
	if result.IsRefusal() {
		t.Fatalf("expected answer once denylist no longer contains yes, got %+v", result)
	}
}

func TestValidatorAnswerSourcesComeFromPassages(t *testing.T) {
	v := NewValidator(DefaultMinWords, DefaultDenylist)
	passages := []domain.RetrievedPassage{
		retrieved("shipping.txt", 0.8123),
		retrieved("returns.txt", 0.6),
		retrieved("shipping.txt", 0.5),
	}
	raw := `{"answer": "Refunds are processed within 5 to 7 business days.", "source_documents": ["ceo.txt", "made-up.pdf"]}`

	result := v.Validate(raw, passages, 0.8123)
	if result.Outcome != domain.OutcomeAnswer {
		t.Fatalf("expected answer, got %+v", result)
	}
	if result.Text != "Refunds are processed within 5 to 7 business days." {
		t.Fatalf("unexpected text %q", result.Text)
	}
	wantSources := []string{"returns.txt", "shipping.txt"}
	if !reflect.DeepEqual(result.Sources, wantSources) {
		t.Fatalf("Sources = %v, want %v", result.Sources, wantSources)
	}
	if result.Confidence != 0.81 {
		t.Fatalf("Confidence = %v, want 0.81", result.Confidence)
	}
}

func TestValidatorAcceptsJSONFence(t *testing.T) {
	v := NewValidator(DefaultMinWords, DefaultDenylist)
	raw := "```json\n{\"answer\": \"Orders ship within two business days.\"}\n```"
	result := v.Validate(raw, []domain.RetrievedPassage{retrieved("shipping.txt", 0.9)}, 0.9)
	if result.IsRefusal() {
		t.Fatalf("expected answer, got %+v", result)
	}
}

func TestValidatorBadSourceDocumentsIgnored(t *testing.T) {
	v := NewValidator(DefaultMinWords, DefaultDenylist)
	raw := `{"answer": "Orders ship within two business days.", "source_documents": "shipping.txt"}`
	result := v.Validate(raw, []domain.RetrievedPassage{retrieved("shipping.txt", 0.9)}, 0.9)
	if result.IsRefusal() {
		t.Fatalf("expected answer, got %+v", result)
	}
}

func TestSourcesOf(t *testing.T) {
	got := SourcesOf([]domain.RetrievedPassage{
		retrieved("b.txt", 0.1),
		retrieved("a.txt", 0.2),
		retrieved("b.txt", 0.3),
	})
	if !reflect.DeepEqual(got, []string{"a.txt", "b.txt"}) {
		t.Fatalf("SourcesOf() = %v", got)
	}
	if got := SourcesOf(nil); got == nil || len(got) != 0 {
		t.Fatalf("SourcesOf(nil) = %#v, want empty slice", got)
	}
}

func TestValidatorMinWordsBoundary(t *testing.T) {
	v := NewValidator(DefaultMinWords, DefaultDenylist)
	passages := []domain.RetrievedPassage{retrieved("returns.txt", 0.7)}

	tests := []struct {
		answer  string
		refused bool
	}{
		{answer: "Refunds take five days.", refused: true},
		{answer: "Refunds take five business days.", refused: false},
	}
	for _, tt := range tests {
		result := v.Validate(`{"answer": "`+tt.answer+`"}`, passages, 0.7)
		if result.IsRefusal() != tt.refused {
			t.Fatalf("answer %q (%d words): got %+v, refused want %v",
				tt.answer, len(strings.Fields(tt.answer)), result, tt.refused)
		}
		if tt.refused && result.Reason != domain.RefusalTrivialAnswer {
			t.Fatalf("answer %q: reason = %q, want trivial_answer", tt.answer, result.Reason)
		}
	}
}

func TestParseGenerationNullAnswerIsMissing(t *testing.T) {
	for _, raw := range []string{`{"answer": null}`, `{"answer": null, "source_documents": ["returns.txt"]}`} {
		if _, err := parseGeneration(raw); !errors.Is(err, errMissingAnswer) {
			t.Fatalf("parseGeneration(%q) error = %v, want errMissingAnswer", raw, err)
		}
	}
}
