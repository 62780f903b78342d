package vision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Engine is a vision-language model behind a black box: prompt and image in,
// free text out.
type Engine interface {
	Name() string
	GetModel() string
	Analyze(ctx context.Context, prompt string, image []byte, mime string) (string, error)
}

var ErrUnknownEngine = errors.New("unknown vision engine")

// Engines is a name -> Engine registry.
type Engines struct {
	mu sync.RWMutex
	m  map[string]Engine
}

func NewEngines(engs ...Engine) *Engines {
	e := &Engines{m: make(map[string]Engine, len(engs))}
	for _, eng := range engs {
		e.Register(eng)
	}
	return e
}

func (e *Engines) Register(eng Engine) {
	if eng == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.m[strings.ToLower(eng.Name())] = eng
}

func (e *Engines) GetEngine(name string) (Engine, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if eng, ok := e.m[strings.ToLower(strings.TrimSpace(name))]; ok {
		return eng, nil
	}
	return nil, fmt.Errorf("%w %q; available: %s", ErrUnknownEngine, name, strings.Join(e.namesLocked(), ", "))
}

func (e *Engines) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.namesLocked()
}

func (e *Engines) namesLocked() []string {
	out := make([]string, 0, len(e.m))
	for k := range e.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
