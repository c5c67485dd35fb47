package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"polyevolve/internal/wire"
)

var (
	ErrPluginExists   = errors.New("plugin already registered")
	ErrPluginNotFound = errors.New("plugin not found")
	ErrPluginKind     = errors.New("plugin has wrong role")
)

// Factory returns a module with default settings; its state is filled in by
// UnmarshalBinary when read from a stream.
type Factory func() Module

type Spec struct {
	Tag  string
	Role Role
	New  Factory
}

var pluginRegistry = struct {
	mu sync.RWMutex
	m  map[string]Spec
}{
	m: make(map[string]Spec),
}

func init() {
	registerBuiltins()
}

// Register adds a module factory. The factory's product must report the
// registered tag and implement the declared role.
func Register(spec Spec) error {
	if spec.Tag == "" {
		return errors.New("plugin tag is required")
	}
	if spec.New == nil {
		return errors.New("plugin factory is required")
	}
	sample := spec.New()
	if sample == nil {
		return fmt.Errorf("plugin factory returned nil: %s", spec.Tag)
	}
	if sample.Tag() != spec.Tag {
		return fmt.Errorf("plugin tag mismatch: registered=%s module=%s", spec.Tag, sample.Tag())
	}
	if got := roleOf(sample); got != spec.Role {
		return fmt.Errorf("%w: %s registered as %s but implements %s", ErrPluginKind, spec.Tag, spec.Role, got)
	}

	pluginRegistry.mu.Lock()
	defer pluginRegistry.mu.Unlock()

	if _, exists := pluginRegistry.m[spec.Tag]; exists {
		return fmt.Errorf("%w: %s", ErrPluginExists, spec.Tag)
	}
	pluginRegistry.m[spec.Tag] = spec
	return nil
}

func MustRegister(spec Spec) {
	if err := Register(spec); err != nil {
		panic(err)
	}
}

// New builds a default-configured module for tag.
func New(tag string) (Module, error) {
	pluginRegistry.mu.RLock()
	spec, ok := pluginRegistry.m[tag]
	pluginRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, tag)
	}
	return spec.New(), nil
}

func NewInitializer(tag string) (Initializer, error) {
	m, err := New(tag)
	if err != nil {
		return nil, err
	}
	return asInitializer(m)
}

func NewMutator(tag string) (Mutator, error) {
	m, err := New(tag)
	if err != nil {
		return nil, err
	}
	return asMutator(m)
}

func NewEvaluator(tag string) (Evaluator, error) {
	m, err := New(tag)
	if err != nil {
		return nil, err
	}
	return asEvaluator(m)
}

// List returns the registered tags for role in sorted order.
func List(role Role) []string {
	pluginRegistry.mu.RLock()
	defer pluginRegistry.mu.RUnlock()

	tags := make([]string, 0, len(pluginRegistry.m))
	for tag, spec := range pluginRegistry.m {
		if spec.Role == role {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// Write emits the module tag followed by its state as a length-prefixed blob.
func Write(w *wire.Writer, m Module) error {
	if m == nil {
		return errors.New("plugin is required")
	}
	state, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal plugin %s: %w", m.Tag(), err)
	}
	w.String(m.Tag())
	w.Blob(state)
	return w.Err()
}

// Read constructs the module named by the next tag in the stream and
// restores its state.
func Read(r *wire.Reader) (Module, error) {
	tag := r.String()
	state := r.Blob()
	if err := r.Err(); err != nil {
		return nil, err
	}
	m, err := New(tag)
	if err != nil {
		return nil, err
	}
	if err := m.UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("unmarshal plugin %s: %w", tag, err)
	}
	return m, nil
}

func ReadInitializer(r *wire.Reader) (Initializer, error) {
	m, err := Read(r)
	if err != nil {
		return nil, err
	}
	return asInitializer(m)
}

func ReadMutator(r *wire.Reader) (Mutator, error) {
	m, err := Read(r)
	if err != nil {
		return nil, err
	}
	return asMutator(m)
}

func ReadEvaluator(r *wire.Reader) (Evaluator, error) {
	m, err := Read(r)
	if err != nil {
		return nil, err
	}
	return asEvaluator(m)
}

func asInitializer(m Module) (Initializer, error) {
	v, ok := m.(Initializer)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an initializer", ErrPluginKind, m.Tag())
	}
	return v, nil
}

func asMutator(m Module) (Mutator, error) {
	v, ok := m.(Mutator)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a mutator", ErrPluginKind, m.Tag())
	}
	return v, nil
}

func asEvaluator(m Module) (Evaluator, error) {
	v, ok := m.(Evaluator)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an evaluator", ErrPluginKind, m.Tag())
	}
	return v, nil
}

func resetRegistryForTests() {
	pluginRegistry.mu.Lock()
	pluginRegistry.m = make(map[string]Spec)
	pluginRegistry.mu.Unlock()
	registerBuiltins()
}
