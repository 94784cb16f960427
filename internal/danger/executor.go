package danger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	id "famledger/pkg/domain"
	dErrors "famledger/pkg/domain-errors"
)

// Executor performs the underlying mutation of one action kind once its
// request is approved and cooled. Executors must be safe to retry: a failed
// execution returns the request to APPROVED for another attempt.
type Executor interface {
	Execute(ctx context.Context, familyID id.FamilyID, payload json.RawMessage) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, familyID id.FamilyID, payload json.RawMessage) error

func (f ExecutorFunc) Execute(ctx context.Context, familyID id.FamilyID, payload json.RawMessage) error {
	return f(ctx, familyID, payload)
}

// Registry maps action kinds to their executors. Registration happens at
// startup; lookups are concurrent.
type Registry struct {
	mu        sync.RWMutex
	executors map[ActionKind]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[ActionKind]Executor)}
}

func (r *Registry) Register(kind ActionKind, exec Executor) error {
	if !kind.IsValid() {
		return fmt.Errorf("register executor: unknown action kind %q", kind)
	}
	if exec == nil {
		return fmt.Errorf("register executor: nil executor for %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[kind]; exists {
		return fmt.Errorf("register executor: duplicate registration for %q", kind)
	}
	r.executors[kind] = exec
	return nil
}

// Lookup returns the executor for a kind, or CodeUnknownAction when no
// executor is registered.
func (r *Registry) Lookup(kind ActionKind) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[kind]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownAction, "no executor registered for action "+kind.String())
	}
	return exec, nil
}
