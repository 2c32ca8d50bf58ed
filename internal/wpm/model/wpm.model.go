package model

import "time"

// CharState is the feedback colour of one passage character.
type CharState string

const (
	CharPending   CharState = "pending"
	CharCorrect   CharState = "correct"
	CharIncorrect CharState = "incorrect"
)

type Result struct {
	ID         string    `json:"id"`
	Passage    string    `json:"passage"`
	WPM        int       `json:"wpm"`
	Accuracy   int       `json:"accuracy"`
	DurationMs int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// Run is the client view of a test in progress.
type Run struct {
	ID      string      `json:"id"`
	Target  string      `json:"target"`
	Input   string      `json:"input"`
	Started bool        `json:"started"`
	Elapsed int         `json:"elapsed_seconds"`
	Chars   []CharState `json:"chars"`
	Result  *Result     `json:"result,omitempty"`
	// Saved reports whether Result made it to the results table.
	Saved bool `json:"saved"`
}

type InputRequest struct {
	Value string `json:"value"`
}

// PassageFile is the YAML layout of a passages file.
type PassageFile struct {
	Passages []string `yaml:"passages"`
}
