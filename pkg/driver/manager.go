package driver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/cameraview/internal/logging"
)

var logger = logging.NewLogger("cameraview/driver")

// ErrNoBackend is returned by Enumerate when nothing is registered.
var ErrNoBackend = errors.New("no capture backend registered")

// Manager keeps the registered backends.
type Manager struct {
	mu       sync.RWMutex
	backends []Backend
}

var manager = NewManager()

// NewManager creates an empty manager. Most callers want GetManager.
func NewManager() *Manager {
	return &Manager{}
}

// GetManager gets manager singleton instance. Backends register themselves
// on it from their init function.
func GetManager() *Manager {
	return manager
}

// Register adds b. Registering a backend with an already known name replaces it.
func (m *Manager) Register(b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, registered := range m.backends {
		if registered.Name() == b.Name() {
			m.backends[i] = b
			return
		}
	}
	m.backends = append(m.backends, b)
}

// Backends returns the registered backends in registration order.
func (m *Manager) Backends() []Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Backend(nil), m.backends...)
}

// Inventory is one enumeration result.
type Inventory struct {
	Cameras     []Camera
	Microphones []Microphone
}

// Enumerate queries every backend. A backend that fails is skipped; an
// error is returned only when no backend could be queried at all.
func (m *Manager) Enumerate() (Inventory, error) {
	var inv Inventory
	var errs []error

	backends := m.Backends()
	if len(backends) == 0 {
		return inv, ErrNoBackend
	}

	var queried int
	for _, b := range backends {
		cams, camErr := b.Cameras()
		if camErr != nil {
			logger.Warnf("%s: failed to enumerate cameras: %v", b.Name(), camErr)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), camErr))
		}
		mics, micErr := b.Microphones()
		if micErr != nil {
			logger.Warnf("%s: failed to enumerate microphones: %v", b.Name(), micErr)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), micErr))
		}
		if camErr == nil || micErr == nil {
			queried++
		}

		inv.Cameras = append(inv.Cameras, cams...)
		inv.Microphones = append(inv.Microphones, mics...)
	}

	if queried == 0 {
		return Inventory{}, errors.Join(errs...)
	}
	return inv, nil
}

// CameraFilter reports whether a camera should be selected.
type CameraFilter func(Camera) bool

// FilterID selects the camera with the given id.
func FilterID(id string) CameraFilter {
	return func(c Camera) bool {
		return c.Info().ID == id
	}
}

// FilterPosition selects cameras facing p.
func FilterPosition(p Position) CameraFilter {
	return func(c Camera) bool {
		return c.Info().Position == p
	}
}

// FilterNot negates a filter.
func FilterNot(filter CameraFilter) CameraFilter {
	return func(c Camera) bool {
		return !filter(c)
	}
}

// FilterAnd returns true if all filters return true.
func FilterAnd(filters ...CameraFilter) CameraFilter {
	return func(c Camera) bool {
		for _, filter := range filters {
			if !filter(c) {
				return false
			}
		}
		return true
	}
}

// Camera returns the first camera matching filter, or nil.
func (inv Inventory) Camera(filter CameraFilter) Camera {
	for _, c := range inv.Cameras {
		if filter(c) {
			return c
		}
	}
	return nil
}

// Microphone returns the microphone with the given id, or nil.
func (inv Inventory) Microphone(id string) Microphone {
	for _, m := range inv.Microphones {
		if m.Info().ID == id {
			return m
		}
	}
	return nil
}
