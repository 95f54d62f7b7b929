package service

import (
	"fmt"
	"sync"
)

// PipelineRegistry holds the live wizard pipelines keyed by session code.
// Each pipeline is owned by one session; handlers and the worker look them
// up here instead of sharing mutable state.
type PipelineRegistry struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

func NewPipelineRegistry() *PipelineRegistry {
	return &PipelineRegistry{
		pipelines: make(map[string]*Pipeline),
	}
}

// Register stores a pipeline under a session code, replacing any previous
// pipeline for that code.
func (r *PipelineRegistry) Register(sessionCode string, p *Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[sessionCode] = p
}

// Get returns the pipeline for a session code.
func (r *PipelineRegistry) Get(sessionCode string) (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[sessionCode]
	if !ok {
		return nil, fmt.Errorf("no active pipeline for session %s", sessionCode)
	}
	return p, nil
}

// Remove drops a finished or abandoned pipeline.
func (r *PipelineRegistry) Remove(sessionCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pipelines, sessionCode)
}
