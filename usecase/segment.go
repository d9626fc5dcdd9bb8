package usecase

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

var (
	sentenceBoundary   = regexp.MustCompile(`([.!?]+["')\]]?)\s+`)
	urlPattern         = regexp.MustCompile(`https?://\S+`)
	fencedCodePattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern  = regexp.MustCompile("`[^`]*`")
	markdownLinkRegexp = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// SplitUnits slices generated text into synthesizable units at sentence
// boundaries. A sentence longer than maxWords falls back to fixed
// word-count windows so no unit grows unbounded.
func SplitUnits(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = 40
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	var units []string
	for _, sentence := range strings.Split(marked, "\x00") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		units = append(units, windowWords(sentence, maxWords)...)
	}
	return units
}

func windowWords(sentence string, maxWords int) []string {
	words := strings.Fields(sentence)
	if len(words) <= maxWords {
		return []string{sentence}
	}
	var out []string
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}

// SanitizeSpeechText strips markup and symbol noise from model output
// so synthesized speech sounds conversational.
func SanitizeSpeechText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = fencedCodePattern.ReplaceAllString(raw, " ")
	raw = inlineCodePattern.ReplaceAllString(raw, " ")
	raw = markdownLinkRegexp.ReplaceAllString(raw, "$1")
	raw = urlPattern.ReplaceAllString(raw, " ")
	raw = strings.NewReplacer("*", " ", "_", " ", "#", " ", "~", " ", "|", " ").Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sk):
			// Emoji and symbol glyphs sound wrong when spoken.
			continue
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// EstimateSpokenDuration predicts how long text takes to speak from its
// word count and the configured speaking rate. Delivery uses this for
// the completion signal; it is not measured from the audio.
func EstimateSpokenDuration(text string, wordsPerMinute int) time.Duration {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 150
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	ms := float64(words) / float64(wordsPerMinute) * 60 * 1000
	return time.Duration(ms) * time.Millisecond
}
