// Package homeauto provides the device-state registry behind the Bat
// Computer's home automation commands. States are plain strings ("ON",
// "ARMED", ...) keyed by device name.
package homeauto

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultDevices seeds a fresh registry.
func DefaultDevices() map[string]string {
	return map[string]string{
		"lights":           "OFF",
		"security":         "ARMED",
		"batcave_entrance": "CLOSED",
		"computer_systems": "ONLINE",
	}
}

// Registry is a thread-safe device-state store. The zero value is not ready
// to use; construct with [NewRegistry].
type Registry struct {
	mu      sync.RWMutex
	devices map[string]string
}

// NewRegistry returns a Registry seeded with the given states, or with
// [DefaultDevices] when seed is nil. Device names are lowercased.
func NewRegistry(seed map[string]string) *Registry {
	if seed == nil {
		seed = DefaultDevices()
	}
	devices := make(map[string]string, len(seed))
	for name, state := range seed {
		devices[strings.ToLower(name)] = state
	}
	return &Registry{devices: devices}
}

// Get returns the state of the named device and whether it exists.
func (r *Registry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.devices[strings.ToLower(name)]
	return state, ok
}

// Set stores the state for a device, creating it if absent.
func (r *Registry) Set(name, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[strings.ToLower(name)] = state
}

// List returns all devices as name-sorted "name: state" lines.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lines := make([]string, 0, len(r.devices))
	for name, state := range r.devices {
		lines = append(lines, fmt.Sprintf("%s: %s", name, state))
	}
	sort.Strings(lines)
	return lines
}
