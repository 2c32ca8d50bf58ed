package service

import (
	"context"

	"deshhindi/internal/compose/model"
	"deshhindi/internal/editor"
)

// Transliterator returns ranked Devanagari candidates for a roman word and
// never fails: on error it answers with the word itself.
type Transliterator interface {
	Transliterate(ctx context.Context, word string) []string
}

// ComposeService runs the stateless editing calls: suggestion lookup,
// suggestion replacement, virtual keys and dictation.
type ComposeService struct {
	Translit Transliterator
}

func NewComposeService(t Transliterator) *ComposeService {
	return &ComposeService{Translit: t}
}

func normalizeMode(m editor.Mode) editor.Mode {
	mode, err := editor.ParseMode(string(m))
	if err != nil {
		return editor.ModeHindi
	}
	return mode
}

// Suggest looks up the word before the caret. The state is not visible when
// no lookup applies (English mode, no roman word).
func (s *ComposeService) Suggest(ctx context.Context, c model.Caret) editor.PopupState {
	mode := normalizeMode(c.Mode)
	word, ok := editor.LookupWord(mode, c.Text, c.Cursor)
	if !ok {
		return editor.PopupState{Items: []string{}}
	}

	popup := editor.NewPopup(mode)
	seq := popup.Request()
	popup.Show(seq, word, s.Translit.Transliterate(ctx, word))
	return popup.State()
}

func (s *ComposeService) Apply(req model.ApplyRequest) model.EditResponse {
	text, cursor := editor.ReplaceWord(req.Text, req.Cursor, req.Suggestion)
	return model.EditResponse{Text: text, Cursor: cursor, Suggestions: editor.PopupState{Items: []string{}}}
}

func (s *ComposeService) Key(ctx context.Context, req model.KeyRequest) model.EditResponse {
	text, cursor := editor.ApplyKey(req.Text, req.Cursor, req.Key)
	return s.after(ctx, req.Mode, text, cursor)
}

func (s *ComposeService) Dictate(ctx context.Context, req model.DictateRequest) model.EditResponse {
	text, cursor := editor.Dictate(req.Text, req.Cursor, req.Transcript)
	return s.after(ctx, req.Mode, text, cursor)
}

// DictationConfig describes the recogniser setup for a mode: one final
// result per utterance.
func (s *ComposeService) DictationConfig(mode editor.Mode) model.DictationConfig {
	return model.DictationConfig{Language: normalizeMode(mode).SpeechLanguage()}
}

func (s *ComposeService) after(ctx context.Context, mode editor.Mode, text string, cursor int) model.EditResponse {
	return model.EditResponse{
		Text:        text,
		Cursor:      cursor,
		Suggestions: s.Suggest(ctx, model.Caret{Text: text, Cursor: cursor, Mode: mode}),
	}
}
