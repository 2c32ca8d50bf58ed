package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("english")
	require.NoError(t, err)
	assert.Equal(t, ModeEnglish, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHindi, m)

	_, err = ParseMode("tamil")
	assert.Error(t, err)
}

func TestSpeechLanguage(t *testing.T) {
	assert.Equal(t, "hi-IN", ModeHindi.SpeechLanguage())
	assert.Equal(t, "en-US", ModeEnglish.SpeechLanguage())
}

func TestApplyKey(t *testing.T) {
	text, cursor := ApplyKey("", 0, "क")
	text, cursor = ApplyKey(text, cursor, "ि")
	assert.Equal(t, "कि", text)
	assert.Equal(t, 2, cursor)

	text, cursor = ApplyKey(text, cursor, KeyEnter)
	assert.Equal(t, "कि\n", text)
	assert.Equal(t, 3, cursor)

	text, cursor = ApplyKey(text, cursor, KeyBackspace)
	text, cursor = ApplyKey(text, cursor, KeyBackspace)
	assert.Equal(t, "क", text)
	assert.Equal(t, 1, cursor)

	text, cursor = ApplyKey(text, cursor, " ")
	assert.Equal(t, "क ", text)
	assert.Equal(t, 2, cursor)
}

func TestDictate(t *testing.T) {
	text, cursor := Dictate("मैं ", 4, "घर जा रहा हूँ")
	assert.Equal(t, "मैं घर जा रहा हूँ ", text)
	assert.Equal(t, len([]rune(text)), cursor)

	text, cursor = Dictate("abc", 3, "   ")
	assert.Equal(t, "abc", text)
	assert.Equal(t, 3, cursor)

	// Transcripts are inserted as heard.
	text, cursor = Dictate("", 0, " घर ")
	assert.Equal(t, " घर  ", text)
	assert.Equal(t, 5, cursor)
}
