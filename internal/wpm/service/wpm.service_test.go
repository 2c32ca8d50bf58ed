package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deshhindi/internal/wpm/model"
	"deshhindi/internal/wpm/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*WPMService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewWPMService(repository.NewResultRepository(db), NewPassages(""))
	s.Pick = func(int) int { return 0 }
	return s, mock
}

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		input    string
		seconds  int
		wpm      int
		accuracy int
	}{
		{"one minute", "abcd", "abxd", 60, 1, 75},
		{"zero seconds", "a b", "a b", 0, 200, 100},
		{"double space counts an empty word", "a  b", "a  b", 60, 3, 100},
		{"half minute", "भारत है", "भारत है", 30, 4, 100},
		{"short input", "abcd", "ab", 60, 1, 50},
		{"empty target", "", "", 60, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wpm, acc := Score(tt.target, tt.input, tt.seconds)
			assert.Equal(t, tt.wpm, wpm)
			assert.Equal(t, tt.accuracy, acc)
		})
	}
}

func TestFeedback(t *testing.T) {
	got := Feedback("भारत", "भार्")
	assert.Equal(t, []model.CharState{
		model.CharCorrect, model.CharCorrect, model.CharCorrect, model.CharIncorrect,
	}, got)

	got = Feedback("ab", "")
	assert.Equal(t, []model.CharState{model.CharPending, model.CharPending}, got)
}

func TestRunLifecycle(t *testing.T) {
	s, mock := newService(t)
	t0 := time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

	r := s.Start("u1", t0)
	require.Equal(t, DefaultPassages[0], r.Target)
	assert.False(t, r.Started)
	assert.NotEmpty(t, r.ID)

	r, err := s.Input("u1", r.ID, "", t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.False(t, r.Started, "empty input does not start the timer")

	r, err = s.Input("u1", r.ID, "भा", t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, r.Started)
	assert.Equal(t, model.CharCorrect, r.Chars[0])
	assert.Equal(t, model.CharPending, r.Chars[len(r.Chars)-1])
	assert.Nil(t, r.Result)

	mock.ExpectExec("INSERT INTO wpm_results").
		WithArgs(r.ID, "u1", DefaultPassages[0], 22, 100, int64(30000), t0.Add(40*time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r, err = s.Input("u1", r.ID, DefaultPassages[0], t0.Add(40*time.Second))
	require.NoError(t, err)
	require.NotNil(t, r.Result)
	assert.Equal(t, 22, r.Result.WPM)
	assert.Equal(t, 100, r.Result.Accuracy)
	assert.Equal(t, 30, r.Elapsed)
	assert.True(t, r.Saved)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = s.Input("u1", r.ID, "more", t0.Add(50*time.Second))
	assert.True(t, errors.Is(err, ErrFinished))
}

func TestInputUnknownOrForeignRun(t *testing.T) {
	s, _ := newService(t)
	now := time.Now()

	_, err := s.Input("u1", "missing", "x", now)
	assert.True(t, errors.Is(err, ErrNotFound))

	r := s.Start("u1", now)
	_, err = s.Input("u2", r.ID, "x", now)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInputIsNormalized(t *testing.T) {
	s, mock := newService(t)
	s.Passages = &Passages{list: normalizeAll([]string{"\u0958"})}
	now := time.Now()

	mock.ExpectExec("INSERT INTO wpm_results").WillReturnResult(sqlmock.NewResult(0, 1))

	r := s.Start("u1", now)
	r, err := s.Input("u1", r.ID, "\u0958", now)
	require.NoError(t, err)
	assert.NotNil(t, r.Result)
}

func TestAbandonedRunsExpire(t *testing.T) {
	s, _ := newService(t)
	t0 := time.Now()

	old := s.Start("u1", t0)
	s.Start("u1", t0.Add(RunTTL+time.Minute))

	_, err := s.Input("u1", old.ID, "x", t0.Add(RunTTL+time.Minute))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPassagesLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("passages:\n  - \"नमस्ते दुनिया\"\n  - \"  \"\n"), 0o644))

	p := NewPassages(path)
	assert.Equal(t, DefaultPassages, p.All())
	require.NoError(t, p.Load())
	assert.Equal(t, []string{"नमस्ते दुनिया"}, p.All())

	require.NoError(t, os.WriteFile(path, []byte("passages: []\n"), 0o644))
	assert.Error(t, p.Load())
	assert.Equal(t, []string{"नमस्ते दुनिया"}, p.All(), "previous set kept")

	require.NoError(t, os.WriteFile(path, []byte("passages: [\n"), 0o644))
	assert.Error(t, p.Load())
}

func TestPassagesNoFile(t *testing.T) {
	p := NewPassages("")
	assert.NoError(t, p.Load())
	assert.Len(t, p.All(), 5)
}

func TestPassagesWatchAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("passages: [\"पहला\"]\n"), 0o644))

	p := NewPassages(path)
	require.NoError(t, p.Load())

	done := make(chan struct{})
	defer close(done)
	go p.WatchAndReload(done)

	assert.Eventually(t, func() bool {
		os.WriteFile(path, []byte("passages: [\"दूसरा\"]\n"), 0o644)
		all := p.All()
		return len(all) == 1 && all[0] == "दूसरा"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestFinishReportsFailedSave(t *testing.T) {
	s, mock := newService(t)
	now := time.Now()
	mock.ExpectExec("INSERT INTO wpm_results").WillReturnError(fmt.Errorf("connection refused"))

	r := s.Start("u1", now)
	r, err := s.Input("u1", r.ID, DefaultPassages[0], now.Add(20*time.Second))
	require.NoError(t, err)
	require.NotNil(t, r.Result, "the score is shown even when it could not be stored")
	assert.False(t, r.Saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpiredRunRejectsInput(t *testing.T) {
	s, _ := newService(t)
	t0 := time.Now()

	r := s.Start("u1", t0)
	_, err := s.Input("u1", r.ID, "भा", t0.Add(RunTTL-time.Minute))
	require.NoError(t, err)

	// No other Start ran in between to purge it.
	_, err = s.Input("u1", r.ID, "भार", t0.Add(RunTTL+time.Second))
	assert.True(t, errors.Is(err, ErrNotFound))
}
