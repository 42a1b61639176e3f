// Copyright 2025 The AgentLand Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package evaluation

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the available evaluators. The built-in set is
// registered at startup; additional implementations may be registered
// at any time under a unique type name.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[EvaluatorType]Evaluator
}

// NewRegistry creates an empty evaluator registry.
func NewRegistry() *Registry {
	return &Registry{
		evaluators: make(map[EvaluatorType]Evaluator),
	}
}

// Register adds an evaluator under its declared type name.
func (r *Registry) Register(ev Evaluator) error {
	if ev == nil || ev.Type() == "" {
		return ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.evaluators[ev.Type()]; exists {
		return fmt.Errorf("evaluator already registered for type %s", ev.Type())
	}

	r.evaluators[ev.Type()] = ev
	return nil
}

// Get retrieves an evaluator by type name.
func (r *Registry) Get(t EvaluatorType) (Evaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.evaluators[t]
	return ev, ok
}

// IsRegistered checks whether an evaluator exists for the type.
func (r *Registry) IsRegistered(t EvaluatorType) bool {
	_, ok := r.Get(t)
	return ok
}

// Types returns all registered evaluator types, sorted for stable
// presentation.
func (r *Registry) Types() []EvaluatorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]EvaluatorType, 0, len(r.evaluators))
	for t := range r.evaluators {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
