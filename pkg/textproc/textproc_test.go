package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "hello world", Clean("  hello\t\n  world \x00"))
	assert.Equal(t, "", Clean("   \n\t  "))
}

func TestSentences(t *testing.T) {
	got := Sentences("First sentence. Second one! Is this third? Yes.")
	assert.Equal(t, []string{
		"First sentence.",
		"Second one!",
		"Is this third?",
		"Yes.",
	}, got)

	assert.Nil(t, Sentences(""))
	assert.Equal(t, []string{"no terminal punctuation"}, Sentences("no terminal punctuation"))
}

func TestKeywords(t *testing.T) {
	text := "The insurance policy covers insurance claims. Insurance premiums apply to the policy."
	got := Keywords(text, 3)
	assert.Equal(t, "insurance", got[0])
	assert.Contains(t, got, "policy")
	assert.Len(t, got, 3)

	// Stopwords and short words never appear.
	assert.NotContains(t, Keywords("the and a to of it", 10), "the")
}

func TestDominantDomain(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"This insurance policy provides coverage with a deductible and copay.", "healthcare"},
		{"The parties hereby agree that any breach of this agreement triggers indemnification.", "legal"},
		{"Quarterly revenue grew while the portfolio's equity dividend rose.", "financial"},
		{"The quick brown fox jumps over the lazy dog.", "general"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DominantDomain(tt.text), tt.text)
	}
}

func TestMonetaryAmounts(t *testing.T) {
	got := MonetaryAmounts("Pay $1,500.00 now and 300 dollars later.")
	assert.Equal(t, []string{"$1,500.00", "300 dollars"}, got)
}

func TestPercentages(t *testing.T) {
	got := Percentages("Rates rose 4.5% then 10 percent overall.")
	assert.Equal(t, []string{"4.5%", "10 percent"}, got)
}

func TestReadability(t *testing.T) {
	easy := Readability("The cat sat. The dog ran. It was fun.")
	hard := Readability("Notwithstanding aforementioned contractual obligations, indemnification considerations predominate.")
	assert.Greater(t, easy, hard)
	assert.Zero(t, Readability(""))
}
