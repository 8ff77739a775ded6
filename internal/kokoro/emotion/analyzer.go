package emotion

import (
	"strings"
	"unicode"
)

// Scoring constants for keyword analysis. A bare keyword hit lands at
// baseScore; an intensity booster anywhere in the text raises it once, a
// dampener lowers it once, and negation directly before the keyword scales
// the hit down hard rather than discarding it.
const (
	baseScore      = 30.0
	boostDelta     = 20.0
	dampenDelta    = 15.0
	negationFactor = 0.3
)

// keywordTable maps each canonical emotion to the tokens and phrases that
// signal it. Single words are matched against message tokens; entries
// containing a space are matched as substrings of the lowered text.
var keywordTable = map[string][]string{
	Happy: {"happy", "glad", "great", "awesome", "amazing", "wonderful",
		"excited", "love", "fantastic", "brilliant", "perfect", "yay", "haha"},
	Angry: {"angry", "mad", "furious", "outraged", "hate", "rage", "fuming"},
	Annoyed: {"annoyed", "annoying", "irritated", "irritating", "frustrated",
		"frustrating", "ugh", "bothered", "tedious", "nuisance"},
	Pondering: {"think", "thinking", "thought", "wonder", "wondering",
		"consider", "ponder", "maybe", "perhaps", "hmm"},
	Reflecting: {"remember", "reflect", "reflecting", "nostalgic", "meaning",
		"purpose", "looking back", "used to"},
	Curious: {"curious", "interesting", "fascinating", "how", "why",
		"what if", "tell me", "explain"},
	Playful: {"play", "playful", "fun", "funny", "joke", "kidding", "tease",
		"silly", "game", "hehe"},
	Melancholy: {"sad", "down", "lonely", "alone", "miss", "empty", "crying",
		"tears", "hurt", "gloomy", "melancholy"},
	Mysterious: {"strange", "mystery", "mysterious", "odd", "weird", "secret",
		"shadow", "unknown", "hidden"},
}

// boosters raise the score of any keyword hit; dampeners lower it. Both are
// checked once per emotion, not per keyword.
var (
	boosters  = []string{"very", "really", "so", "extremely", "incredibly", "deeply", "truly"}
	dampeners = []string{"slightly", "a bit", "a little", "kind of", "kinda", "somewhat"}
	negators  = map[string]bool{
		"not": true, "never": true, "no": true, "don't": true, "dont": true,
		"isn't": true, "isnt": true, "wasn't": true, "wasnt": true,
		"aren't": true, "arent": true, "can't": true, "cant": true,
	}
)

// Analyzer derives a partial emotion snapshot from message text by keyword
// scoring. It is stateless and safe for concurrent use.
type Analyzer struct{}

// NewAnalyzer returns a keyword analyzer over the canonical emotion set.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scores text against the keyword table and returns the resulting
// snapshot. Emotions with no signal are absent from the result; text with no
// signal at all yields an empty snapshot.
func (a *Analyzer) Analyze(text string) Snapshot {
	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	boosted := anyPresent(lower, tokens, boosters)
	dampened := anyPresent(lower, tokens, dampeners)

	out := Snapshot{}
	for _, name := range Names {
		score := 0.0
		for _, kw := range keywordTable[name] {
			hit, negated := matchKeyword(lower, tokens, kw)
			if !hit {
				continue
			}
			s := baseScore
			if boosted {
				s += boostDelta
			}
			if dampened {
				s -= dampenDelta
			}
			if negated {
				s *= negationFactor
			}
			if s > score {
				score = s
			}
		}
		if score > 0 {
			out[name] = Clamp(score)
		}
	}
	return out
}

// Dominant is a convenience wrapper returning the strongest emotion in text
// and its intensity, or ("", 0) when nothing matches.
func (a *Analyzer) Dominant(text string) (string, float64) {
	return a.Analyze(text).Dominant()
}

// matchKeyword reports whether kw occurs in the message and whether the
// occurrence is negated. Phrases (containing a space) match as substrings and
// are never considered negated; single words match whole tokens, with the
// preceding token checked against the negator set.
func matchKeyword(lower string, tokens []string, kw string) (hit, negated bool) {
	if strings.Contains(kw, " ") {
		return strings.Contains(lower, kw), false
	}
	for i, tok := range tokens {
		if tok != kw {
			continue
		}
		if i > 0 && negators[tokens[i-1]] {
			return true, true
		}
		return true, false
	}
	return false, false
}

// anyPresent reports whether any term occurs in the message: phrases as
// substrings, single words as whole tokens.
func anyPresent(lower string, tokens []string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(t, " ") {
			if strings.Contains(lower, t) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if tok == t {
				return true
			}
		}
	}
	return false
}

// tokenize splits lowered text into word tokens, keeping apostrophes so
// contractions ("don't") survive as single tokens.
func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
