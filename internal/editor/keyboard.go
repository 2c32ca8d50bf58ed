package editor

import (
	"fmt"
	"strings"
)

// Mode is the input mode toggle of the editor.
type Mode string

const (
	ModeHindi   Mode = "HINDI"
	ModeEnglish Mode = "ENGLISH"
)

// ParseMode accepts the mode names case-insensitively. Empty means Hindi.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeHindi, "":
		return ModeHindi, nil
	case ModeEnglish:
		return ModeEnglish, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// SpeechLanguage is the BCP-47 tag dictation is recognised in.
func (m Mode) SpeechLanguage() string {
	if m == ModeEnglish {
		return "en-US"
	}
	return "hi-IN"
}

// Key values sent by the virtual Devanagari keyboard besides plain characters.
const (
	KeyBackspace = "BACKSPACE"
	KeyEnter     = "ENTER"
)

// LineBreak is what ENTER inserts into the caret's text node.
const LineBreak = "\n"

// ApplyKey applies one virtual keyboard press at cursor.
func ApplyKey(text string, cursor int, key string) (string, int) {
	switch key {
	case KeyBackspace:
		return Backspace(text, cursor)
	case KeyEnter:
		return Insert(text, cursor, LineBreak)
	case "":
		return text, clamp(cursor, len([]rune(text)))
	default:
		return Insert(text, cursor, key)
	}
}

// Dictate inserts a final speech transcript followed by a space. Blank
// transcripts leave the text untouched.
func Dictate(text string, cursor int, transcript string) (string, int) {
	if strings.TrimSpace(transcript) == "" {
		return text, clamp(cursor, len([]rune(text)))
	}
	return Insert(text, cursor, transcript+" ")
}
