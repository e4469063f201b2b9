package bus

import (
	"fmt"
	"sort"
	"sync"

	"github.com/starford/devdash/internal/apperr"
)

// Channel is the type-erased view of a bus used by the registry.
type Channel interface {
	Name() string
	Len() int
}

// Registry maps channel names to bus instances. Names are unique.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register adds ch under its name. Registering a name twice fails instead of
// overwriting the existing route.
func (r *Registry) Register(ch Channel) error {
	name := ch.Name()
	if name == "" {
		return fmt.Errorf("bus: register: empty channel name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[name]; exists {
		return fmt.Errorf("bus: register %q: %w", name, apperr.ErrDuplicateChannel)
	}
	r.channels[name] = ch
	return nil
}

// Lookup returns the channel registered under name.
func (r *Registry) Lookup(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// Names returns registered channel names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.channels))
	for name := range r.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
