package main

import (
	"context"
	"errors"
	"testing"
)

type stepSourceFunc func(ctx context.Context) ([]Step, error)

func (f stepSourceFunc) ListSteps(ctx context.Context) ([]Step, error) { return f(ctx) }

func TestLoadStepsFallback(t *testing.T) {
	defaults := len(DefaultSteps())
	tests := []struct {
		name string
		src  StepSource
	}{
		{"nil source", nil},
		{"failing source", stepSourceFunc(func(context.Context) ([]Step, error) {
			return nil, errors.New("connection refused")
		})},
		{"empty source", stepSourceFunc(func(context.Context) ([]Step, error) {
			return nil, nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LoadSteps(context.Background(), tt.src)
			if len(got) != defaults {
				t.Errorf("got %d steps, want the %d defaults", len(got), defaults)
			}
		})
	}
}

func TestLoadStepsSorts(t *testing.T) {
	src := stepSourceFunc(func(context.Context) ([]Step, error) {
		return []Step{
			{ID: 3, Name: "c", Order: 2},
			{ID: 1, Name: "a", Order: 1},
			{ID: 2, Name: "b", Order: 2},
		}, nil
	})
	got := LoadSteps(context.Background(), src)
	order := []int{1, 2, 3}
	for i, id := range order {
		if got[i].ID != id {
			t.Fatalf("order = %v, want ids %v", got, order)
		}
	}
}

func TestDefaultSteps(t *testing.T) {
	steps := DefaultSteps()
	for i, st := range steps {
		if st.Order != i+1 {
			t.Errorf("step %q has order %d, want %d", st.Name, st.Order, i+1)
		}
		if st.Formula == "" {
			t.Errorf("step %q has no formula", st.Name)
		}
	}
}

func TestStepReached(t *testing.T) {
	st := Step{Order: 2}
	if st.Reached(1) {
		t.Error("step 2 reached at 1")
	}
	if !st.Reached(2) || !st.Reached(4) {
		t.Error("step 2 not reached at 2 or 4")
	}
}
