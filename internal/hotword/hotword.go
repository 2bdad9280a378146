// Package hotword aligns recognized text with a configured hotword list.
// Speech models routinely mangle proper nouns and domain terms; the corrector
// replaces words (and multi-word phrases) that sound like a configured
// hotword with the hotword's canonical spelling.
//
// Matching proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input tokens and for each hotword. A code overlap makes the hotword
//     a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the hotword with the
//     highest Jaro-Winkler similarity (case-insensitive) wins, provided it
//     clears the phonetic threshold. Without any phonetic candidate, a pure
//     string-similarity pass applies with a stricter fuzzy threshold.
//
// Multi-word hotwords (e.g. "Sense Voice") are supported: the corrector
// tries n-gram windows longest-first so a phrase match takes precedence over
// a partial single-word match.
package hotword

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Correction records one replacement applied by [Corrector.Correct].
type Correction struct {
	Original   string  `json:"original"`
	Corrected  string  `json:"corrected"`
	Confidence float64 `json:"confidence"`
}

// Option is a functional option for configuring a Corrector.
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched hotword to be accepted. Default: 0.70.
func WithPhoneticThreshold(t float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = t }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.85.
func WithFuzzyThreshold(t float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = t }
}

// Corrector replaces misrecognized words with configured hotwords. It is
// read-only after construction and safe for concurrent use.
type Corrector struct {
	hotwords          []string
	codes             []map[string]struct{} // per-hotword Double Metaphone codes
	maxWords          int
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New creates a Corrector over the given hotword list. Blank entries are
// dropped. Phonetic codes are precomputed once here.
func New(hotwords []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		maxWords:          1,
	}
	for _, o := range opts {
		o(c)
	}
	for _, hw := range hotwords {
		hw = strings.TrimSpace(hw)
		if hw == "" {
			continue
		}
		c.hotwords = append(c.hotwords, hw)
		tokens := strings.Fields(strings.ToLower(hw))
		c.codes = append(c.codes, codesForTokens(tokens))
		if len(tokens) > c.maxWords {
			c.maxWords = len(tokens)
		}
	}
	return c
}

// Correct rewrites text, replacing n-gram windows that match a hotword.
// Longer windows are tried first so multi-word hotwords win over partial
// single-word matches. The returned corrections list the replacements in
// text order; an empty hotword list leaves text untouched.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.hotwords) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var (
		output      []string
		corrections []Correction
	)

	i := 0
	for i < len(tokens) {
		maxN := c.maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			hw, conf, ok := c.match(window)
			if !ok || strings.EqualFold(hw, window) {
				continue
			}
			output = append(output, strings.Fields(hw)...)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  hw,
				Confidence: conf,
			})
			i += n
			matched = true
			break
		}
		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}
	return strings.Join(output, " "), corrections
}

// match finds the hotword most similar to word, which may be a single token
// or a space-separated window.
func (c *Corrector) match(word string) (hotword string, confidence float64, matched bool) {
	wordLower := strings.ToLower(strings.TrimSpace(word))
	if wordLower == "" {
		return word, 0, false
	}
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	var (
		bestEntity   string
		bestScore    float64
		bestPhonetic bool
	)

	for idx, hw := range c.hotwords {
		hwLower := strings.ToLower(hw)
		hwTokens := strings.Fields(hwLower)

		phonetic := codesOverlap(inputCodes, c.codes[idx])
		score := bestJWScore(wordTokens, hwTokens, wordLower, hwLower)

		if phonetic {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				bestEntity, bestScore, bestPhonetic = hw, score, true
			}
		} else if !bestPhonetic && score >= c.fuzzyThreshold && score > bestScore {
			bestEntity, bestScore = hw, score
		}
	}

	if bestEntity == "" {
		return word, 0, false
	}
	return bestEntity, bestScore, true
}

// codesForTokens returns the union of the Double Metaphone codes of the
// tokens, excluding empty codes.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// window and the hotword: full strings, space-stripped concatenations, and
// the best pairwise token score.
func bestJWScore(inputTokens, hwTokens []string, inputFull, hwFull string) float64 {
	score := matchr.JaroWinkler(inputFull, hwFull, false)

	if len(inputTokens) > 1 || len(hwTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(hwTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inputTokens {
		for _, ht := range hwTokens {
			if s := matchr.JaroWinkler(it, ht, false); s > score {
				score = s
			}
		}
	}
	return score
}
