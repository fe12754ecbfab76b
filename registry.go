package hostcore

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type (
	// Setup is handed to a plugin constructor.
	Setup struct {
		SampleRate float64
		BufferSize int
	}

	// Constructor creates a new plugin instance of one kind.
	Constructor func(setup Setup) (Plugin, error)

	// Registry knows the plugin kinds available in the process. It is created
	// once at startup with NewRegistry, filled with explicit Register calls
	// and torn down with Shutdown, which also closes every instance the
	// registry created that implements io.Closer.
	Registry struct {
		mu        sync.Mutex
		kinds     map[string]Constructor
		instances []Plugin
		closed    bool
	}
)

var (
	ErrUnknownKind    = errors.New("unknown plugin kind")
	ErrRegistryClosed = errors.New("registry has been shut down")
)

func NewRegistry() *Registry {
	return &Registry{kinds: map[string]Constructor{}}
}

// Register adds a plugin kind. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	if c == nil {
		return errors.Errorf("nil constructor for plugin kind %q", kind)
	}
	if _, ok := r.kinds[kind]; ok {
		return errors.Errorf("plugin kind %q already registered", kind)
	}
	r.kinds[kind] = c
	return nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// New creates a plugin instance of the given kind.
func (r *Registry) New(kind string, setup Setup) (Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	c, ok := r.kinds[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
	p, err := c(setup)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create plugin %q", kind)
	}
	r.instances = append(r.instances, p)
	return p, nil
}

// Shutdown closes all created instances and makes the registry unusable.
// The first close error is returned, but all instances are closed anyway.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var ret error
	for _, p := range r.instances {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil && ret == nil {
				ret = errors.Wrapf(err, "could not close plugin %q", p.Info().Name)
			}
		}
	}
	r.instances = nil
	r.kinds = nil
	return ret
}
