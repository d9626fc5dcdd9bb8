package usecase

import "testing"

func TestClassifyEmotion(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "neutral statement", text: "The bus arrives at nine", want: EmotionNeutral},
		{name: "empty text", text: "", want: EmotionNeutral},
		{name: "joy", text: "I'm so happy, today was awesome!", want: EmotionJoy},
		{name: "sadness", text: "I miss my friend and I feel lonely", want: EmotionSadness},
		{name: "anger", text: "That was so unfair, I'm really mad", want: EmotionAnger},
		{name: "fear", text: "I'm scared of the dark and worried about tomorrow", want: EmotionFear},
		{name: "tie resolves to neutral", text: "I'm happy but also sad", want: EmotionNeutral},
		{name: "case insensitive", text: "SO HAPPY AND EXCITED", want: EmotionJoy},
		{name: "substring is not a match", text: "the madrigal was unhappily long", want: EmotionNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyEmotion(tt.text); got != tt.want {
				t.Errorf("ClassifyEmotion(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
