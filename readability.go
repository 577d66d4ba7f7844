package optimizer

import (
	"regexp"
	"strings"
)

// defaultFleschTarget is the reading-ease register assumed when a document
// does not name its audience: plain web prose, neither academic nor
// simplified.
const defaultFleschTarget = 60.0

var reSentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// splitSentences breaks flattened text into sentences. Heuristic but
// deterministic; good enough for counting and per-sentence pattern checks.
func splitSentences(text string) []string {
	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		start := 0
		for _, loc := range reSentenceEnd.FindAllStringIndex(line, -1) {
			s := strings.TrimSpace(line[start:loc[1]])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = loc[1]
		}
		if rest := strings.TrimSpace(line[start:]); rest != "" {
			sentences = append(sentences, rest)
		}
	}
	return sentences
}

// fleschReadingEase computes the standard Flesch score:
// 206.835 - 1.015*(words/sentences) - 84.6*(syllables/word).
// Results are clamped to [0, 100]; zero-word input scores 0.
func fleschReadingEase(words []string, sentenceCount int) float64 {
	if len(words) == 0 || sentenceCount == 0 {
		return 0
	}
	totalSyllables := 0
	for _, w := range words {
		totalSyllables += countSyllables(w)
	}
	score := 206.835 -
		1.015*(float64(len(words))/float64(sentenceCount)) -
		84.6*(float64(totalSyllables)/float64(len(words)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// complexWordRatio is the fraction of words with three or more syllables.
func complexWordRatio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	hard := 0
	for _, w := range words {
		if countSyllables(w) >= 3 {
			hard++
		}
	}
	return float64(hard) / float64(len(words))
}

// countSyllables estimates syllables by counting vowel groups, with a
// silent-e adjustment. Every word counts at least one.
func countSyllables(word string) int {
	word = strings.ToLower(strings.Trim(word, ".,;:!?\"'()[]"))
	if word == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
