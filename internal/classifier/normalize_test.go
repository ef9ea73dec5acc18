package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases and trims",
			input: "  Chief Executive Officer ",
			want:  "chief executive officer",
		},
		{
			name:  "strips accents",
			input: "Dirección Médica",
			want:  "direccion medica",
		},
		{
			name:  "accent and case insensitive forms agree",
			input: "DIRECCION MEDICA",
			want:  "direccion medica",
		},
		{
			name:  "removes punctuation",
			input: "V.P., Sales & Marketing",
			want:  "v p sales marketing",
		},
		{
			name:  "collapses internal whitespace",
			input: "head   of\t\tgrowth",
			want:  "head of growth",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only",
			input: "   \t  ",
			want:  "",
		},
		{
			name:  "punctuation only",
			input: "---",
			want:  "",
		},
		{
			name:  "keeps digits",
			input: "Account Manager 2",
			want:  "account manager 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			assert.Equal(t, tt.want, got)

			// Idempotence: normalizing a normalized string is a no-op.
			assert.Equal(t, got, Normalize(got))
		})
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	// Variants of the same title all normalize to one canonical form.
	variants := []string{
		"Director de Marketing",
		"DIRECTOR DE MARKETING",
		"director  de   marketing",
		"Director de Marketing.",
	}

	for _, v := range variants {
		assert.Equal(t, "director de marketing", Normalize(v), "variant %q", v)
	}
}
