package usecase

import "strings"

// Emotion labels attached to transcripts when emotion detection is
// enabled for a session.
const (
	EmotionNeutral = "neutral"
	EmotionJoy     = "joy"
	EmotionSadness = "sadness"
	EmotionAnger   = "anger"
	EmotionFear    = "fear"
)

var emotionLexicon = map[string][]string{
	EmotionJoy:     {"happy", "glad", "great", "awesome", "love", "wonderful", "excited", "fun"},
	EmotionSadness: {"sad", "unhappy", "miss", "lonely", "cry", "tired", "disappointed"},
	EmotionAnger:   {"angry", "mad", "hate", "furious", "annoyed", "unfair"},
	EmotionFear:    {"scared", "afraid", "worried", "nervous", "anxious", "frightened"},
}

// ClassifyEmotion labels transcript text with a coarse emotion by
// lexicon match. It is a hint for response generation, not an
// affect-recognition system; ties resolve to neutral.
func ClassifyEmotion(text string) string {
	lowered := strings.ToLower(text)
	words := strings.FieldsFunc(lowered, func(r rune) bool {
		return !('a' <= r && r <= 'z') && r != '\''
	})
	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[w] = true
	}

	best := EmotionNeutral
	bestHits := 0
	for _, emotion := range []string{EmotionJoy, EmotionSadness, EmotionAnger, EmotionFear} {
		hits := 0
		for _, keyword := range emotionLexicon[emotion] {
			if present[keyword] {
				hits++
			}
		}
		if hits > bestHits {
			best = emotion
			bestHits = hits
		} else if hits == bestHits && hits > 0 {
			best = EmotionNeutral
		}
	}
	return best
}
