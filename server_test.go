package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*Server, *StaticStore) {
	t.Helper()
	cfg := &Config{
		Server:     ServerCfg{Mode: "test", SessionTTL: time.Hour},
		Store:      StoreCfg{Backend: BackendStatic},
		Embedding:  DefaultEmbeddingCfg(),
		Preview:    5,
		Classifier: DefaultClassifierCfg(),
	}
	pipeline, err := NewPipelineFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStaticStore()
	backend := &Backend{Steps: store, Quiz: store}
	return NewServer(cfg, pipeline, backend, fixedCounter(2)), store
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return w, out
}

func TestServerEmbed(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := doJSON(t, s.Handler(), http.MethodPost, "/api/embed", `{"text":"Hello world"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	sessionID, _ := body["session_id"].(string)
	if sessionID == "" {
		t.Fatal("no session id")
	}
	result := body["result"].(map[string]any)
	if got := len(result["contextual"].([]any)); got != 5 {
		t.Errorf("preview has %d values, want 5", got)
	}
	if got := result["length"].(float64); got != 11 {
		t.Errorf("length = %v, want 11", got)
	}
	steps := body["steps"].([]any)
	for _, raw := range steps {
		if !raw.(map[string]any)["reached"].(bool) {
			t.Errorf("step not reached after a result: %v", raw)
		}
	}

	// empty text keeps the previous result for the same session
	w, body = doJSON(t, s.Handler(), http.MethodPost, "/api/embed", `{"text":"","session_id":"`+sessionID+`"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if body["error"] != "Please enter some text to analyze" {
		t.Errorf("error = %v", body["error"])
	}
	prev, ok := body["result"].(map[string]any)
	if !ok || prev["input"] != "Hello world" {
		t.Errorf("previous result = %v", body["result"])
	}
}

func TestServerEmbedParallelSameSession(t *testing.T) {
	s, _ := newTestServer(t)
	_, body := doJSON(t, s.Handler(), http.MethodPost, "/api/embed", `{"text":"first"}`)
	sessionID := body["session_id"].(string)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := "parallel text"
			if i%4 == 0 {
				text = ""
			}
			req := httptest.NewRequest(http.MethodPost, "/api/embed",
				strings.NewReader(`{"text":"`+text+`","session_id":"`+sessionID+`"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusOK && w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d body = %s", w.Code, w.Body)
				return
			}
			var out map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Errorf("decode: %v", err)
				return
			}
			if out["session_id"] != sessionID {
				t.Errorf("session_id = %v, want %s", out["session_id"], sessionID)
			}
		}(i)
	}
	wg.Wait()
}

func TestServerEmbedEmptyFreshSession(t *testing.T) {
	s, _ := newTestServer(t)
	w, body := doJSON(t, s.Handler(), http.MethodPost, "/api/embed", `{"text":""}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	if _, ok := body["result"]; ok {
		t.Error("fresh session returned a result")
	}
}

func TestServerEmbedBadJSON(t *testing.T) {
	s, _ := newTestServer(t)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/embed", `{"text":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestServerSteps(t *testing.T) {
	s, _ := newTestServer(t)
	w, body := doJSON(t, s.Handler(), http.MethodGet, "/api/steps?current=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	steps := body["steps"].([]any)
	if len(steps) != 4 {
		t.Fatalf("got %d steps", len(steps))
	}
	for i, raw := range steps {
		reached := raw.(map[string]any)["reached"].(bool)
		if reached != (i < 2) {
			t.Errorf("step %d reached = %v", i+1, reached)
		}
	}
}

func TestServerPositional(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := doJSON(t, s.Handler(), http.MethodGet, "/api/positional?positions=4&dim=6", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	table := body["table"].([]any)
	if len(table) != 4 || len(table[0].([]any)) != 6 {
		t.Errorf("table shape wrong: %v", table)
	}
	if got := len(body["collapsed"].([]any)); got != 4 {
		t.Errorf("collapsed len = %d", got)
	}

	for _, q := range []string{"dim=0", "dim=abc", "positions=-1", "positions=100000"} {
		w, _ := doJSON(t, s.Handler(), http.MethodGet, "/api/positional?"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestServerTokenize(t *testing.T) {
	s, _ := newTestServer(t)
	w, body := doJSON(t, s.Handler(), http.MethodPost, "/api/tokenize", `{"text":"hello there"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["token_count"].(float64) != 2 || body["bpe_tokens"].(float64) != 2 {
		t.Errorf("body = %v", body)
	}
}

func TestServerQuiz(t *testing.T) {
	s, store := newTestServer(t)

	w, body := doJSON(t, s.Handler(), http.MethodGet, "/api/quiz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	questions := body["questions"].([]any)
	if len(questions) != len(SampleQuestions()) {
		t.Fatalf("got %d questions", len(questions))
	}
	for _, raw := range questions {
		q := raw.(map[string]any)
		if _, leaked := q["correct_answer"]; leaked {
			t.Errorf("question %v exposes its answer", q["id"])
		}
	}

	w, body = doJSON(t, s.Handler(), http.MethodPost, "/api/quiz/5/answer", `{"answer":2,"session_id":"abc"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("answer status = %d body = %s", w.Code, w.Body)
	}
	if body["correct"] != true || body["explanation"] == "" {
		t.Errorf("answer body = %v", body)
	}
	if got := store.Attempts(); len(got) != 1 || got[0].SessionID != "abc" {
		t.Errorf("attempts = %+v", got)
	}

	cases := []struct {
		path, body string
		status     int
	}{
		{"/api/quiz/99/answer", `{"answer":0}`, http.StatusNotFound},
		{"/api/quiz/1/answer", `{"answer":7}`, http.StatusBadRequest},
		{"/api/quiz/1/answer", `{}`, http.StatusBadRequest},
		{"/api/quiz/x/answer", `{"answer":0}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		w, _ := doJSON(t, s.Handler(), http.MethodPost, c.path, c.body)
		if w.Code != c.status {
			t.Errorf("%s %s: status = %d, want %d", c.path, c.body, w.Code, c.status)
		}
	}
}

func TestServerIndex(t *testing.T) {
	s, _ := newTestServer(t)
	w, _ := doJSON(t, s.Handler(), http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Positional Encoding") {
		t.Error("index does not list the steps")
	}
}
