package main

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSessionKeepsPreviousResultOnEmptyInput(t *testing.T) {
	p := testPipeline(t, PolicyLinear)
	sess := &Session{ID: "s1"}

	first, err := sess.Compute(p, "hello")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if sess.CurrentStep != len(DefaultSteps()) {
		t.Errorf("current step = %d, want %d", sess.CurrentStep, len(DefaultSteps()))
	}

	got, err := sess.Compute(p, "")
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	if got != first || sess.Last != first {
		t.Error("empty input replaced the previous result")
	}
}

func TestSessionEmptyInputWithoutHistory(t *testing.T) {
	p := testPipeline(t, PolicyLinear)
	sess := &Session{ID: "s1"}
	got, err := sess.Compute(p, "")
	if !errors.Is(err, ErrEmptyInput) || got != nil {
		t.Errorf("Compute = %v, %v; want nil, ErrEmptyInput", got, err)
	}
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(time.Hour)
	p := testPipeline(t, PolicyLinear)

	sess, res, err := store.Compute("", p, "abc")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if sess.ID == "" || res == nil || sess.Last != res {
		t.Fatalf("session %+v result %v", sess, res)
	}

	again := store.Get(sess.ID)
	if again.ID != sess.ID || again.Last != res || again.CurrentStep != len(DefaultSteps()) {
		t.Errorf("Get = %+v, want the computed session", again)
	}
	if other := store.Get("unknown"); other.ID == "unknown" || other.ID == sess.ID {
		t.Error("unknown id must create a fresh session")
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	store := NewSessionStore(time.Hour)
	sess := store.Get("")
	sess.CurrentStep = 3

	if got := store.Get(sess.ID); got.CurrentStep != 0 {
		t.Errorf("caller changed the stored session: step %d", got.CurrentStep)
	}
}

func TestSessionStoreEvicts(t *testing.T) {
	store := NewSessionStore(time.Minute)
	clock := time.Now()
	store.now = func() time.Time { return clock }

	old := store.Get("")
	clock = clock.Add(2 * time.Minute)

	store.Get("")
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1 after eviction", store.Len())
	}
	if got := store.Get(old.ID); got.ID == old.ID {
		t.Error("expired session was returned")
	}
}

func TestSessionStoreLookupKeepsSessionAlive(t *testing.T) {
	store := NewSessionStore(time.Minute)
	clock := time.Now()
	store.now = func() time.Time { return clock }
	p := testPipeline(t, PolicyLinear)

	sess, first, err := store.Compute("", p, "hello")
	if err != nil {
		t.Fatal(err)
	}
	// empty submissions within the ttl keep refreshing the session
	for i := 0; i < 3; i++ {
		clock = clock.Add(45 * time.Second)
		got, res, err := store.Compute(sess.ID, p, "")
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("err = %v, want ErrEmptyInput", err)
		}
		if got.ID != sess.ID || res != first {
			t.Fatalf("round %d: session %s result %v, want %s with the first result", i, got.ID, res, sess.ID)
		}
	}
}

func TestSessionStoreConcurrentCompute(t *testing.T) {
	store := NewSessionStore(time.Hour)
	p := testPipeline(t, PolicyLinear)
	sess, _, err := store.Compute("", p, "start")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := "text"
			if i%3 == 0 {
				text = ""
			}
			got, _, err := store.Compute(sess.ID, p, text)
			if err != nil && !errors.Is(err, ErrEmptyInput) {
				t.Errorf("Compute: %v", err)
			}
			if got.ID != sess.ID || got.CurrentStep != len(DefaultSteps()) {
				t.Errorf("session = %s step %d", got.ID, got.CurrentStep)
			}
		}(i)
	}
	wg.Wait()
}
