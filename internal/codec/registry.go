package codec

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Info describes a registered codec.
type Info struct {
	Name        string `json:"name" doc:"Codec name"`
	Mime        string `json:"mime" doc:"Output mime type"`
	Hardware    bool   `json:"hardware" doc:"Backed by hardware"`
	Description string `json:"description,omitempty" doc:"Human readable description"`
}

// Factory creates a new, unconfigured codec instance.
type Factory func() (Codec, error)

type entry struct {
	info    Info
	factory Factory
}

// Registry maps codec names and mime types to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a codec. Registering the same name twice is an error.
func (r *Registry) Register(info Info, factory Factory) error {
	if info.Name == "" || info.Mime == "" {
		return fmt.Errorf("codec info requires name and mime")
	}
	if factory == nil {
		return fmt.Errorf("codec %s: nil factory", info.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[info.Name]; exists {
		return fmt.Errorf("codec %s already registered", info.Name)
	}
	r.entries[info.Name] = entry{info: info, factory: factory}
	return nil
}

// Lookup returns the info for a codec name.
func (r *Registry) Lookup(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.info, ok
}

// List returns all registered codecs sorted by mime then name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	slices.SortFunc(out, func(a, b Info) int {
		if c := strings.Compare(a.Mime, b.Mime); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// CreateByName instantiates the named codec.
func (r *Registry) CreateByName(name string) (Codec, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotFound, name)
	}
	return e.factory()
}

// CreateByType instantiates an encoder for mime, preferring hardware codecs.
func (r *Registry) CreateByType(mime string) (Codec, error) {
	var candidates []Info
	for _, info := range r.List() {
		if info.Mime == mime {
			candidates = append(candidates, info)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no encoder for %s", ErrCodecNotFound, mime)
	}
	slices.SortStableFunc(candidates, func(a, b Info) int {
		switch {
		case a.Hardware == b.Hardware:
			return 0
		case a.Hardware:
			return -1
		default:
			return 1
		}
	})
	return r.CreateByName(candidates[0].Name)
}
