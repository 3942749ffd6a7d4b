// Package llmtest provides a scripted llm.Model for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"plant-doctor/api/internal/llm"
)

// Stub answers every call with Text, or fails with Err. With Block set it waits for the
// context to end instead.
type Stub struct {
	EngineName string
	ModelName  string
	Text       string
	Err        error
	Block      bool

	mu    sync.Mutex
	calls []llm.Request
}

func New(text string) *Stub {
	return &Stub{EngineName: "stub", ModelName: "stub-1", Text: text}
}

func Failing(err error) *Stub {
	return &Stub{EngineName: "stub", ModelName: "stub-1", Err: err}
}

func (s *Stub) Name() string     { return s.EngineName }
func (s *Stub) GetModel() string { return s.ModelName }

func (s *Stub) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.Block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if s.Err != nil {
		return llm.Response{}, s.Err
	}
	if s.Text == "" {
		return llm.Response{}, fmt.Errorf("stub %s: %w", req.Flow, llm.ErrEmptyOutput)
	}
	return llm.Response{Text: s.Text, Engine: s.EngineName, Model: s.ModelName}, nil
}

func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastRequest returns the most recent request; it panics when there was none.
func (s *Stub) LastRequest() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}
