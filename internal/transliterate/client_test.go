package transliterate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: time.Second})
}

func TestTransliterateSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/request", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "namaste", q.Get("text"))
		assert.Equal(t, "hi-t-i0-und", q.Get("itc"))
		assert.Equal(t, "5", q.Get("num"))
		assert.Equal(t, "utf-8", q.Get("oe"))
		w.Write([]byte(`["SUCCESS",[["namaste",["नमस्ते","नमस्तें","नमसते"],[],{"candidate_type":[0,0,0]}]]]`))
	})

	got := c.Transliterate(context.Background(), "namaste")
	assert.Equal(t, []string{"नमस्ते", "नमस्तें", "नमसते"}, got)
}

func TestTransliterateFallbacks(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"non success status", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`["FAILED_TO_PARSE_REQUEST_BODY"]`))
		}},
		{"error status code", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusServiceUnavailable)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}},
		{"empty candidates", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`["SUCCESS",[["ghar",[]]]]`))
		}},
		{"no results", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`["SUCCESS",[]]`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.h)
			assert.Equal(t, []string{"ghar"}, c.Transliterate(context.Background(), "ghar"))
		})
	}
}

func TestTransliterateUnreachable(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.Equal(t, []string{"ghar"}, c.Transliterate(context.Background(), "ghar"))
}

func TestRequestURLHonoursConfig(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://example.test", InputTool: "mr-t-i0-und", Candidates: 3})
	u := c.requestURL("ghar")
	require.Contains(t, u, "https://example.test/request?")
	assert.Contains(t, u, "itc=mr-t-i0-und")
	assert.Contains(t, u, "num=3")
}
