package model

import "deshhindi/internal/editor"

// Caret is the text node holding the caret and the rune offset in it.
type Caret struct {
	Text   string      `json:"text"`
	Cursor int         `json:"cursor"`
	Mode   editor.Mode `json:"mode"`
}

type SuggestRequest struct {
	Caret
}

type ApplyRequest struct {
	Caret
	Suggestion string `json:"suggestion"`
}

type KeyRequest struct {
	Caret
	Key string `json:"key"`
}

type DictateRequest struct {
	Caret
	Transcript string `json:"transcript"`
}

// EditResponse is the caret text after an edit plus the suggestions the new
// caret position calls for.
type EditResponse struct {
	Text        string            `json:"text"`
	Cursor      int               `json:"cursor"`
	Suggestions editor.PopupState `json:"suggestions"`
}

type DictationConfig struct {
	Language       string `json:"language"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interim_results"`
}
