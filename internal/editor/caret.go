// Package editor holds the text operations behind the Hindi editor: word
// lookup around the caret, suggestion replacement, virtual keyboard keys,
// dictation and the suggestion popup state machine.
//
// Every function works on the content of the text node that holds the caret.
// Cursor offsets are rune offsets into that text; out-of-range offsets are
// clamped.
package editor

import (
	"unicode"
)

// isSeparator matches what ends a word: any Unicode white space, which
// includes the no-break space U+00A0 contentEditable inserts.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r)
}

func clamp(cursor, n int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > n {
		return n
	}
	return cursor
}

// LastWord returns the fragment between the last separator before cursor and
// the cursor itself. It is empty when the caret follows a separator.
func LastWord(text string, cursor int) string {
	r := []rune(text)
	cursor = clamp(cursor, len(r))
	start := cursor
	for start > 0 && !isSeparator(r[start-1]) {
		start--
	}
	return string(r[start:cursor])
}

// IsRomanWord reports whether word consists only of ASCII letters, the only
// input the transliteration lookup is issued for.
func IsRomanWord(word string) bool {
	if word == "" {
		return false
	}
	for _, c := range word {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// LookupWord returns the word a transliteration lookup should be issued for,
// or false when the caret context does not call for one.
func LookupWord(mode Mode, text string, cursor int) (string, bool) {
	if mode != ModeHindi {
		return "", false
	}
	word := LastWord(text, cursor)
	if !IsRomanWord(word) {
		return "", false
	}
	return word, true
}

// ReplaceWord swaps the word before cursor for suggestion followed by a
// space. Without a word before the caret the suggestion is inserted at it.
func ReplaceWord(text string, cursor int, suggestion string) (string, int) {
	r := []rune(text)
	cursor = clamp(cursor, len(r))
	start := cursor - len([]rune(LastWord(text, cursor)))

	insert := []rune(suggestion + " ")
	out := make([]rune, 0, len(r)-(cursor-start)+len(insert))
	out = append(out, r[:start]...)
	out = append(out, insert...)
	out = append(out, r[cursor:]...)
	return string(out), start + len(insert)
}

// Insert places s at cursor and returns the caret after it.
func Insert(text string, cursor int, s string) (string, int) {
	r := []rune(text)
	cursor = clamp(cursor, len(r))
	ins := []rune(s)

	out := make([]rune, 0, len(r)+len(ins))
	out = append(out, r[:cursor]...)
	out = append(out, ins...)
	out = append(out, r[cursor:]...)
	return string(out), cursor + len(ins)
}

// Backspace removes the code point before cursor. A Devanagari matra or
// virama is its own code point, so it is removed without its consonant.
func Backspace(text string, cursor int) (string, int) {
	r := []rune(text)
	cursor = clamp(cursor, len(r))
	if cursor == 0 {
		return text, 0
	}
	out := make([]rune, 0, len(r)-1)
	out = append(out, r[:cursor-1]...)
	out = append(out, r[cursor:]...)
	return string(out), cursor - 1
}
