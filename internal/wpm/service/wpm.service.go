package service

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"deshhindi/internal/wpm/model"
	"deshhindi/internal/wpm/repository"

	"github.com/rs/xid"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound = errors.New("run not found")
	ErrFinished = errors.New("run already finished")
)

// RunTTL bounds how long an abandoned run is kept in memory.
const RunTTL = time.Hour

type run struct {
	owner     string
	target    string
	input     string
	created   time.Time
	started   bool
	startedAt time.Time
	result    *model.Result
	saved     bool
}

type WPMService struct {
	Repo     *repository.ResultRepository
	Passages *Passages
	// Pick chooses the passage index in [0, n).
	Pick func(n int) int

	mu   sync.Mutex
	runs map[string]*run
}

func NewWPMService(repo *repository.ResultRepository, passages *Passages) *WPMService {
	return &WPMService{
		Repo:     repo,
		Passages: passages,
		Pick:     rand.Intn,
		runs:     make(map[string]*run),
	}
}

// Start begins a new run on a random passage. The timer starts with the
// first non-empty input.
func (s *WPMService) Start(ownerID string, now time.Time) model.Run {
	passages := s.Passages.All()
	target := passages[s.Pick(len(passages))]

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.runs {
		if now.Sub(r.created) > RunTTL {
			delete(s.runs, id)
		}
	}
	id := xid.New().String()
	r := &run{owner: ownerID, target: target, created: now}
	s.runs[id] = r
	return view(id, r, now)
}

// Input records the full current input of a run. The run finishes, and its
// result is stored, once the input equals the passage.
func (s *WPMService) Input(ownerID, id, value string, now time.Time) (model.Run, error) {
	value = norm.NFC.String(value)

	s.mu.Lock()
	r, ok := s.runs[id]
	if ok && now.Sub(r.created) > RunTTL {
		delete(s.runs, id)
		ok = false
	}
	if !ok || r.owner != ownerID {
		s.mu.Unlock()
		return model.Run{}, ErrNotFound
	}
	if r.result != nil {
		s.mu.Unlock()
		return model.Run{}, ErrFinished
	}

	if !r.started && value != "" {
		r.started = true
		r.startedAt = now
	}
	r.input = value

	if value != r.target {
		out := view(id, r, now)
		s.mu.Unlock()
		return out, nil
	}

	elapsed := now.Sub(r.startedAt)
	wpm, accuracy := Score(r.target, value, int(elapsed/time.Second))
	r.result = &model.Result{
		ID:         id,
		Passage:    r.target,
		WPM:        wpm,
		Accuracy:   accuracy,
		DurationMs: elapsed.Milliseconds(),
		FinishedAt: now,
	}
	result := *r.result
	out := view(id, r, now)
	s.mu.Unlock()

	// A failed save is logged by the repository; the result is still shown.
	if err := s.Repo.Save(ownerID, result); err == nil {
		s.mu.Lock()
		r.saved = true
		s.mu.Unlock()
		out.Saved = true
	}
	return out, nil
}

func (s *WPMService) Results(ownerID string) ([]model.Result, error) {
	return s.Repo.ListByOwner(ownerID)
}

func view(id string, r *run, now time.Time) model.Run {
	out := model.Run{
		ID:      id,
		Target:  r.target,
		Input:   r.input,
		Started: r.started,
		Chars:   Feedback(r.target, r.input),
		Result:  r.result,
		Saved:   r.saved,
	}
	if r.started {
		end := now
		if r.result != nil {
			end = r.startedAt.Add(time.Duration(r.result.DurationMs) * time.Millisecond)
		}
		out.Elapsed = int(end.Sub(r.startedAt) / time.Second)
	}
	return out
}

// Score computes words per minute and accuracy for a finished input. The
// duration is whole seconds; zero counts as 0.01 minutes. Words are the
// fields between single spaces, and accuracy is the share of passage
// characters matched at the same position.
func Score(target, input string, seconds int) (wpm, accuracy int) {
	minutes := float64(seconds) / 60
	if minutes == 0 {
		minutes = 0.01
	}
	words := len(strings.Split(input, " "))
	wpm = int(math.Round(float64(words) / minutes))

	t := []rune(target)
	if len(t) == 0 {
		return wpm, 0
	}
	in := []rune(input)
	correct := 0
	for i := 0; i < len(in) && i < len(t); i++ {
		if in[i] == t[i] {
			correct++
		}
	}
	accuracy = int(math.Round(float64(correct) / float64(len(t)) * 100))
	return wpm, accuracy
}

// Feedback marks each passage character as typed correctly, typed wrongly or
// not reached yet.
func Feedback(target, input string) []model.CharState {
	t := []rune(target)
	in := []rune(input)
	out := make([]model.CharState, len(t))
	for i, c := range t {
		switch {
		case i >= len(in):
			out[i] = model.CharPending
		case in[i] == c:
			out[i] = model.CharCorrect
		default:
			out[i] = model.CharIncorrect
		}
	}
	return out
}
