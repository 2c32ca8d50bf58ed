package editor

import (
	"sync"
)

// Keys the popup reacts to, named as KeyboardEvent.key reports them.
const (
	KeyArrowDown = "ArrowDown"
	KeyArrowUp   = "ArrowUp"
	KeyReturn    = "Enter"
	KeySpace     = " "
	KeyEscape    = "Escape"
)

// MaxQuickPick is how many candidates can be taken with the digit keys.
const MaxQuickPick = 5

type ActionKind uint8

const (
	// ActionNone means the key is not the popup's business.
	ActionNone ActionKind = iota
	ActionNavigate
	ActionAccept
	ActionDismiss
)

// Action is the popup's reaction to a key. Navigate and accept consume the
// key; ActionNone lets it reach the document.
type Action struct {
	Kind ActionKind
	Text string
}

// Popup tracks the transliteration candidates shown next to the caret.
//
// Lookups are numbered by Request. Only the response to the newest request
// is shown, so a slow response for an earlier keystroke cannot replace the
// list of a later one. Dismiss also invalidates the pending request.
//
// A Popup is safe for concurrent use.
type Popup struct {
	mu sync.Mutex

	mode      Mode
	issued    uint64
	cancelled uint64
	shown     uint64

	word     string
	items    []string
	selected int
}

func NewPopup(mode Mode) *Popup {
	return &Popup{mode: mode}
}

// PopupState is a snapshot of the popup for rendering.
type PopupState struct {
	Seq      uint64   `json:"seq"`
	Word     string   `json:"word"`
	Items    []string `json:"candidates"`
	Selected int      `json:"selected"`
	Visible  bool     `json:"visible"`
}

func (p *Popup) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetMode switches input mode. Leaving Hindi mode drops the popup.
func (p *Popup) SetMode(m Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = m
	if m != ModeHindi {
		p.resetLocked()
	}
}

// Request numbers a new lookup.
func (p *Popup) Request() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	return p.issued
}

// Show installs the candidates returned for request seq, followed by the
// literal word so the user can keep the roman spelling. Duplicates are
// dropped keeping the first occurrence. It returns false and changes nothing
// when seq is no longer the newest live request.
func (p *Popup) Show(seq uint64, word string, candidates []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.issued || seq <= p.cancelled || p.mode != ModeHindi {
		return false
	}

	items := make([]string, 0, len(candidates)+1)
	seen := make(map[string]bool, len(candidates)+1)
	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		items = append(items, c)
	}
	for _, c := range candidates {
		add(c)
	}
	add(word)

	p.shown = seq
	p.word = word
	p.items = items
	p.selected = 0
	return true
}

// Dismiss hides the popup and drops any lookup still in flight.
func (p *Popup) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Popup) resetLocked() {
	p.cancelled = p.issued
	p.word = ""
	p.items = nil
	p.selected = 0
}

func (p *Popup) visibleLocked() bool {
	return p.mode == ModeHindi && len(p.items) > 0
}

func (p *Popup) State() PopupState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PopupState{
		Seq:      p.shown,
		Word:     p.word,
		Items:    append([]string(nil), p.items...),
		Selected: p.selected,
		Visible:  p.visibleLocked(),
	}
}

// Hover moves the selection to i, as pointing at a row does.
func (p *Popup) Hover(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= 0 && i < len(p.items) {
		p.selected = i
	}
}

// Pick accepts candidate i directly (a click on a row).
func (p *Popup) Pick(i int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visibleLocked() || i < 0 || i >= len(p.items) {
		return "", false
	}
	text := p.items[i]
	p.resetLocked()
	return text, true
}

// HandleKey runs one key through the popup. Keys are ignored while the popup
// is hidden.
func (p *Popup) HandleKey(key string) Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visibleLocked() {
		return Action{}
	}

	n := len(p.items)
	switch key {
	case KeyArrowDown:
		p.selected = (p.selected + 1) % n
		return Action{Kind: ActionNavigate}
	case KeyArrowUp:
		p.selected = (p.selected - 1 + n) % n
		return Action{Kind: ActionNavigate}
	case KeyReturn, KeySpace:
		text := p.items[p.selected]
		p.resetLocked()
		return Action{Kind: ActionAccept, Text: text}
	case KeyEscape:
		p.resetLocked()
		return Action{Kind: ActionDismiss}
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '0'+MaxQuickPick {
		i := int(key[0] - '1')
		if i < n {
			text := p.items[i]
			p.resetLocked()
			return Action{Kind: ActionAccept, Text: text}
		}
	}
	return Action{}
}
