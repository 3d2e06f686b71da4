// Package textproc provides text cleanup and lightweight analysis helpers
// used by the chunker and the heuristic classifier.
package textproc

import (
	"regexp"
	"sort"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	controlRe    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	sentenceRe   = regexp.MustCompile(`[.!?]+\s+`)
	wordRe       = regexp.MustCompile(`[a-zA-Z][a-zA-Z'-]+`)

	moneyRe   = regexp.MustCompile(`\$[\d,]+(?:\.\d{1,2})?|\b\d[\d,]*(?:\.\d{1,2})?\s?(?:dollars|USD)\b`)
	percentRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\s?(?:%|percent\b)`)
	numberRe  = regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\b`)
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "shall": true, "should": true, "may": true,
	"might": true, "can": true, "could": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "not": true,
	"any": true, "all": true, "such": true, "other": true, "which": true,
	"their": true, "there": true, "than": true, "then": true, "when": true,
	"if": true, "into": true, "under": true, "upon": true, "each": true,
}

// Domain-indicative vocabulary used for heuristic classification.
var domainTerms = map[string][]string{
	"healthcare": {
		"insurance", "coverage", "premium", "deductible", "copay", "copayment",
		"claim", "beneficiary", "policyholder", "medical", "health", "hospital",
		"prescription", "diagnosis", "treatment", "provider", "network",
		"exclusion", "benefit", "enrollment",
	},
	"legal": {
		"contract", "agreement", "party", "parties", "clause", "whereas",
		"hereby", "herein", "thereof", "liability", "indemnify", "indemnification",
		"breach", "termination", "jurisdiction", "arbitration", "warranty",
		"covenant", "obligation", "pursuant",
	},
	"financial": {
		"investment", "portfolio", "asset", "equity", "dividend", "revenue",
		"profit", "loss", "budget", "fiscal", "quarterly", "annual", "interest",
		"principal", "balance", "statement", "audit", "earnings", "shareholder",
		"valuation",
	},
}

// Clean normalizes whitespace and strips control characters.
func Clean(text string) string {
	text = controlRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Sentences splits text on sentence boundaries. Terminal punctuation is kept
// with its sentence.
func Sentences(text string) []string {
	text = Clean(text)
	if text == "" {
		return nil
	}

	var out []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[last:loc[1]])
		if s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// Keywords returns the most frequent non-stopword terms in text, most
// frequent first, at most limit entries.
func Keywords(text string, limit int) []string {
	counts := map[string]int{}
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		counts[w]++
	}

	type wc struct {
		word  string
		count int
	}
	ranked := make([]wc, 0, len(counts))
	for w, c := range counts {
		ranked = append(ranked, wc{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.word
	}
	return out
}

// DomainScores counts domain-indicative term occurrences per domain.
func DomainScores(text string) map[string]int {
	lower := strings.ToLower(text)
	scores := map[string]int{}
	for domain, terms := range domainTerms {
		for _, term := range terms {
			scores[domain] += strings.Count(lower, term)
		}
	}
	return scores
}

// DominantDomain returns the best-scoring domain, or "general" when no
// domain vocabulary appears.
func DominantDomain(text string) string {
	scores := DomainScores(text)
	best, bestScore := "general", 0
	for _, domain := range []string{"healthcare", "legal", "financial"} {
		if scores[domain] > bestScore {
			best, bestScore = domain, scores[domain]
		}
	}
	return best
}

// MonetaryAmounts extracts dollar amounts and spelled currency references.
func MonetaryAmounts(text string) []string {
	return moneyRe.FindAllString(text, -1)
}

// Percentages extracts percentage expressions.
func Percentages(text string) []string {
	return percentRe.FindAllString(text, -1)
}

// Numbers extracts all numeric tokens.
func Numbers(text string) []string {
	return numberRe.FindAllString(text, -1)
}

// Readability approximates a Flesch reading-ease score. Higher is easier.
func Readability(text string) float64 {
	sentences := Sentences(text)
	words := wordRe.FindAllString(text, -1)
	if len(sentences) == 0 || len(words) == 0 {
		return 0
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wordsPerSentence := float64(len(words)) / float64(len(sentences))
	syllablesPerWord := float64(syllables) / float64(len(words))
	score := 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
