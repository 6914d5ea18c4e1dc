package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseStore reads steps and questions through the PostgREST API of a
// hosted Supabase project.
type SupabaseStore struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewSupabaseStore(baseURL, apiKey string, timeout time.Duration) *SupabaseStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SupabaseStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (s *SupabaseStore) ListSteps(ctx context.Context) ([]Step, error) {
	body, err := s.doRequest(ctx, http.MethodGet, "/rest/v1/transformer_steps?select=*&order=order_number.asc")
	if err != nil {
		return nil, err
	}
	var steps []Step
	if err := json.Unmarshal(body, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse steps: %w", err)
	}
	return steps, nil
}

func (s *SupabaseStore) ListQuestions(ctx context.Context) ([]Question, error) {
	body, err := s.doRequest(ctx, http.MethodGet, "/rest/v1/transformer_questions?select=*&order=id.asc")
	if err != nil {
		return nil, err
	}
	var questions []Question
	if err := json.Unmarshal(body, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}
	return questions, nil
}

func (s *SupabaseStore) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("apikey", s.APIKey)
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supabase error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
