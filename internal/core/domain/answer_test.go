package domain

import "testing"

func TestAnswerResultPlainText(t *testing.T) {
	tests := []struct {
		name   string
		result AnswerResult
		want   string
	}{
		{
			name:   "with sources",
			result: Grounded("Shipping takes 3 to 5 business days.", []string{"shipping.txt"}, 0.5),
			want:   "Shipping takes 3 to 5 business days.\n\nSources:\n- shipping.txt\n\nConfidence: 50%",
		},
		{
			name:   "without sources",
			result: Grounded("Shipping is free above 50 euros.", nil, 0.5),
			want:   "Shipping is free above 50 euros.\n\nConfidence: 50%",
		},
		{
			name:   "refusal hides reason",
			result: Refuse(RefusalLowConfidence),
			want:   CanonicalRefusal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.PlainText(); got != tt.want {
				t.Fatalf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfidencePercentRounds(t *testing.T) {
	if got := Grounded("x", nil, 0.816).ConfidencePercent(); got != 82 {
		t.Fatalf("expected 82, got %d", got)
	}
}
